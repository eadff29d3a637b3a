package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"magpie/internal/model"
	"magpie/internal/pkg/kv"
)

// fakeKV 带故障注入的内存 kv.Store
type fakeKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet bool
	failSet bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string][]byte)}
}

func (f *fakeKV) Get(_ context.Context, keys ...string) (map[string][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return nil, errors.New("fake: get failed")
	}
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := f.data[k]; ok {
			cp := make([]byte, len(v))
			copy(cp, v)
			out[k] = cp
		}
	}
	return out, nil
}

func (f *fakeKV) Set(_ context.Context, entries map[string][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return errors.New("fake: set failed")
	}
	for k, v := range entries {
		cp := make([]byte, len(v))
		copy(cp, v)
		f.data[k] = cp
	}
	return nil
}

func (f *fakeKV) Remove(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeKV) Keys(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func (f *fakeKV) Ping(context.Context) error { return nil }
func (f *fakeKV) Name() string               { return "fake" }
func (f *fakeKV) Close() error               { return nil }

func (f *fakeKV) storedSize() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data[conversationsKey])
}

var baseTime = time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

func msg(role model.Role, text string, seq int64) model.Message {
	return model.NewMessage(role, text, seq, baseTime)
}

func TestConversationStore_Merge(t *testing.T) {
	Convey("Merge 合并去重", t, func() {
		fake := newFakeKV()
		s := New(fake, 5*1024*1024)
		ctx := context.Background()

		batch := []model.Message{
			msg(model.RoleUser, "What is the capital of France?", 0),
			msg(model.RoleAssistant, "The capital of France is Paris.", 1),
		}

		Convey("首次合并创建会话", func() {
			So(s.Merge(ctx, "conv-1", "https://chat.example/a", "France", batch), ShouldBeNil)

			conv, err := s.GetOne(ctx, "conv-1")
			So(err, ShouldBeNil)
			So(conv.Messages, ShouldHaveLength, 2)
			So(conv.URL, ShouldEqual, "https://chat.example/a")
			So(conv.Title, ShouldEqual, "France")
			So(conv.CreatedAt.IsZero(), ShouldBeFalse)
		})

		Convey("同批次重复合并不新增消息", func() {
			So(s.Merge(ctx, "conv-1", "u", "t", batch), ShouldBeNil)
			So(s.Merge(ctx, "conv-1", "u", "t", batch), ShouldBeNil)

			conv, _ := s.GetOne(ctx, "conv-1")
			So(conv.Messages, ShouldHaveLength, 2)
		})

		Convey("合并结果与批次顺序无关", func() {
			shared := msg(model.RoleAssistant, "The capital of France is Paris.", 1)
			sharedLate := msg(model.RoleAssistant, "The capital of France is Paris.", 5)
			a := []model.Message{msg(model.RoleUser, "What is the capital of France?", 0), shared}
			b := []model.Message{sharedLate, msg(model.RoleUser, "And the capital of Spain?", 6)}

			So(s.Merge(ctx, "ab", "u", "t", a), ShouldBeNil)
			So(s.Merge(ctx, "ab", "u", "t", b), ShouldBeNil)
			So(s.Merge(ctx, "ba", "u", "t", b), ShouldBeNil)
			So(s.Merge(ctx, "ba", "u", "t", a), ShouldBeNil)

			convAB, _ := s.GetOne(ctx, "ab")
			convBA, _ := s.GetOne(ctx, "ba")
			So(convAB.Messages, ShouldHaveLength, 3)
			So(convBA.Messages, ShouldHaveLength, 3)
			for i := range convAB.Messages {
				So(convBA.Messages[i].DedupKey(), ShouldEqual, convAB.Messages[i].DedupKey())
				// 冲突时两个方向都保留序列号更小的变体
				So(convBA.Messages[i].Sequence, ShouldEqual, convAB.Messages[i].Sequence)
			}
		})

		Convey("消息按序列号排序存储", func() {
			out := []model.Message{
				msg(model.RoleAssistant, "The capital of France is Paris.", 3),
				msg(model.RoleUser, "What is the capital of France?", 2),
			}
			So(s.Merge(ctx, "conv-2", "u", "t", out), ShouldBeNil)

			conv, _ := s.GetOne(ctx, "conv-2")
			So(conv.Messages[0].Sequence, ShouldEqual, 2)
			So(conv.Messages[1].Sequence, ShouldEqual, 3)
		})

		Convey("kv 写失败时返回 ErrUnavailable 且存储保持原样", func() {
			So(s.Merge(ctx, "conv-1", "u", "t", batch), ShouldBeNil)
			before := fake.storedSize()

			fake.failSet = true
			err := s.Merge(ctx, "conv-1", "u", "t", []model.Message{
				msg(model.RoleUser, "another question entirely?", 2),
			})
			So(errors.Is(err, kv.ErrUnavailable), ShouldBeTrue)
			So(fake.storedSize(), ShouldEqual, before)
		})

		Convey("kv 读失败时返回 ErrUnavailable", func() {
			fake.failGet = true
			err := s.Merge(ctx, "conv-1", "u", "t", batch)
			So(errors.Is(err, kv.ErrUnavailable), ShouldBeTrue)
		})
	})
}

func TestConversationStore_Eviction(t *testing.T) {
	Convey("超出预算时按最旧优先淘汰整个会话", t, func() {
		fake := newFakeKV()
		s := New(fake, 4096)
		ctx := context.Background()

		clock := baseTime
		s.now = func() time.Time { return clock }

		// 每个会话一条大消息，总量远超预算
		big := func(i byte) string {
			b := make([]byte, 1500)
			for j := range b {
				b[j] = 'a' + i
			}
			return string(b)
		}

		ids := []string{"conv-old", "conv-mid", "conv-new"}
		for i, id := range ids {
			clock = clock.Add(time.Minute)
			err := s.Merge(ctx, id, "u", "t", []model.Message{
				msg(model.RoleUser, big(byte(i)), 0),
			})
			So(err, ShouldBeNil)
		}

		convs, err := s.GetAll(ctx)
		So(err, ShouldBeNil)

		Convey("最新会话完整保留", func() {
			conv, ok := convs["conv-new"]
			So(ok, ShouldBeTrue)
			So(conv.Messages, ShouldHaveLength, 1)
		})

		Convey("最旧会话被整体淘汰，消息从不截断", func() {
			_, ok := convs["conv-old"]
			So(ok, ShouldBeFalse)
			for _, conv := range convs {
				So(conv.Messages, ShouldHaveLength, 1)
			}
		})

		Convey("淘汰后落盘大小不超过预算", func() {
			So(fake.storedSize(), ShouldBeLessThanOrEqualTo, 4096)
		})
	})
}

func TestConversationStore_ExportImport(t *testing.T) {
	Convey("导出导入", t, func() {
		fake := newFakeKV()
		s := New(fake, 5*1024*1024)
		ctx := context.Background()

		So(s.Merge(ctx, "conv-1", "u1", "t1", []model.Message{
			msg(model.RoleUser, "What is the capital of France?", 0),
		}), ShouldBeNil)
		So(s.Merge(ctx, "conv-2", "u2", "t2", []model.Message{
			msg(model.RoleAssistant, "The capital of France is Paris.", 0),
		}), ShouldBeNil)

		export, err := s.Export(ctx)
		So(err, ShouldBeNil)
		So(export.Version, ShouldEqual, model.ExportVersion)
		So(export.TotalConversations, ShouldEqual, 2)
		So(export.Conversations, ShouldHaveLength, 2)

		Convey("导入只增加本地没有的会话", func() {
			other := newFakeKV()
			dst := New(other, 5*1024*1024)

			So(dst.Merge(ctx, "conv-1", "local", "local", []model.Message{
				msg(model.RoleUser, "a locally captured question?", 0),
			}), ShouldBeNil)

			added, err := dst.Import(ctx, export)
			So(err, ShouldBeNil)
			So(added, ShouldEqual, 1)

			// 本地已有的 conv-1 不被覆盖
			conv, _ := dst.GetOne(ctx, "conv-1")
			So(conv.URL, ShouldEqual, "local")

			conv2, err := dst.GetOne(ctx, "conv-2")
			So(err, ShouldBeNil)
			So(conv2.Messages, ShouldHaveLength, 1)
		})

		Convey("重复导入第二次不再新增", func() {
			other := newFakeKV()
			dst := New(other, 5*1024*1024)

			added, _ := dst.Import(ctx, export)
			So(added, ShouldEqual, 2)
			added, _ = dst.Import(ctx, export)
			So(added, ShouldEqual, 0)
		})

		Convey("nil 导出报错", func() {
			_, err := s.Import(ctx, nil)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestConversationStore_Lifecycle(t *testing.T) {
	Convey("查询与删除", t, func() {
		fake := newFakeKV()
		s := New(fake, 5*1024*1024)
		ctx := context.Background()

		So(s.Merge(ctx, "conv-1", "u", "t", []model.Message{
			msg(model.RoleUser, "What is the capital of France?", 0),
		}), ShouldBeNil)

		Convey("GetOne 未知 ID 返回 ErrNotFound", func() {
			_, err := s.GetOne(ctx, "missing")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("Delete 后再查询返回 ErrNotFound", func() {
			So(s.Delete(ctx, "conv-1"), ShouldBeNil)
			_, err := s.GetOne(ctx, "conv-1")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("Delete 未知 ID 返回 ErrNotFound", func() {
			So(errors.Is(s.Delete(ctx, "missing"), ErrNotFound), ShouldBeTrue)
		})

		Convey("ClearAll 清空后存储为空", func() {
			So(s.ClearAll(ctx), ShouldBeNil)
			convs, err := s.GetAll(ctx)
			So(err, ShouldBeNil)
			So(convs, ShouldBeEmpty)
		})

		Convey("Usage 返回统计", func() {
			usage, err := s.Usage(ctx)
			So(err, ShouldBeNil)
			So(usage.ConversationCount, ShouldEqual, 1)
			So(usage.TotalMessages, ShouldEqual, 1)
			So(usage.TotalSize, ShouldBeGreaterThan, 0)
			So(usage.IsNearLimit, ShouldBeFalse)
		})
	})
}
