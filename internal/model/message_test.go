package model

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewMessage(t *testing.T) {
	Convey("NewMessage 计算派生元数据", t, func() {
		ts := time.Date(2026, 8, 31, 10, 30, 0, 0, time.UTC)

		Convey("ID 由角色、序列和内容确定性派生", func() {
			a := NewMessage(RoleUser, "hello world", 3, ts)
			b := NewMessage(RoleUser, "hello world", 3, ts.Add(time.Minute))
			c := NewMessage(RoleUser, "hello world", 4, ts)

			So(a.ID, ShouldStartWith, "msg-")
			So(a.ID, ShouldEqual, b.ID)
			So(a.ID, ShouldNotEqual, c.ID)
		})

		Convey("代码与 markdown 检测", func() {
			code := NewMessage(RoleAssistant, "use `fmt.Println` to print", 0, ts)
			So(code.HasCode, ShouldBeTrue)

			md := NewMessage(RoleAssistant, "# Heading\nsome text", 0, ts)
			So(md.HasMarkdown, ShouldBeTrue)

			plain := NewMessage(RoleUser, "just a plain sentence", 0, ts)
			So(plain.HasCode, ShouldBeFalse)
			So(plain.HasMarkdown, ShouldBeFalse)
		})

		Convey("词数统计：空白切分与 CJK 分词", func() {
			en := NewMessage(RoleUser, "what is the capital of France", 0, ts)
			So(en.WordCount, ShouldEqual, 6)

			zh := NewMessage(RoleUser, "法国的首都是什么", 0, ts)
			So(zh.WordCount, ShouldBeGreaterThan, 1)

			empty := NewMessage(RoleUser, "", 0, ts)
			So(empty.WordCount, ShouldEqual, 0)
		})

		Convey("字符数按 rune 计", func() {
			m := NewMessage(RoleUser, "héllo", 0, ts)
			So(m.CharacterCount, ShouldEqual, 5)
		})
	})
}

func TestDedupKey(t *testing.T) {
	Convey("DedupKey 对 (角色, 内容, 小时) 稳定", t, func() {
		ts := time.Date(2026, 8, 31, 10, 30, 0, 0, time.UTC)

		Convey("同一小时内的重渲染得到同一键", func() {
			a := NewMessage(RoleUser, "hello there", 0, ts)
			b := NewMessage(RoleUser, "hello there", 7, ts.Add(20*time.Minute))
			So(a.DedupKey(), ShouldEqual, b.DedupKey())
		})

		Convey("跨小时、不同角色或不同内容的键不同", func() {
			base := NewMessage(RoleUser, "hello there", 0, ts)
			So(NewMessage(RoleUser, "hello there", 0, ts.Add(time.Hour)).DedupKey(),
				ShouldNotEqual, base.DedupKey())
			So(NewMessage(RoleAssistant, "hello there", 0, ts).DedupKey(),
				ShouldNotEqual, base.DedupKey())
			So(NewMessage(RoleUser, "hello here", 0, ts).DedupKey(),
				ShouldNotEqual, base.DedupKey())
		})

		Convey("内容哈希忽略首尾空白", func() {
			So(ContentHash("  hello  "), ShouldEqual, ContentHash("hello"))
		})
	})
}

func TestConversation(t *testing.T) {
	Convey("Conversation 辅助方法", t, func() {
		ts := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

		Convey("NewConversationID 优先稳定标识，回退到 URL+日期哈希", func() {
			So(NewConversationID("page-abc", "https://x/1", ts), ShouldEqual, "page-abc")

			hashed := NewConversationID("", "https://x/1", ts)
			So(hashed, ShouldStartWith, "conv-")
			So(NewConversationID("", "https://x/1", ts.Add(time.Hour)), ShouldEqual, hashed)
			So(NewConversationID("", "https://x/1", ts.Add(24*time.Hour)), ShouldNotEqual, hashed)
			So(NewConversationID("", "https://x/2", ts), ShouldNotEqual, hashed)
		})

		Convey("SortMessages 按序列排序，序列相同时回退时间戳", func() {
			conv := Conversation{Messages: []Message{
				NewMessage(RoleAssistant, "second answer arrives", 2, ts),
				NewMessage(RoleUser, "first question asked", 1, ts),
				NewMessage(RoleUser, "legacy with same sequence", 0, ts.Add(time.Minute)),
				NewMessage(RoleUser, "legacy earlier timestamp", 0, ts),
			}}
			conv.SortMessages()

			So(conv.Messages[0].Text, ShouldEqual, "legacy earlier timestamp")
			So(conv.Messages[1].Text, ShouldEqual, "legacy with same sequence")
			So(conv.Messages[2].Sequence, ShouldEqual, 1)
			So(conv.Messages[3].Sequence, ShouldEqual, 2)
		})

		Convey("DedupKeys 覆盖全部消息", func() {
			conv := Conversation{Messages: []Message{
				NewMessage(RoleUser, "hello there", 0, ts),
				NewMessage(RoleAssistant, "hi, how can I help?", 1, ts),
			}}
			keys := conv.DedupKeys()
			So(keys, ShouldHaveLength, 2)
			for _, m := range conv.Messages {
				_, ok := keys[m.DedupKey()]
				So(ok, ShouldBeTrue)
			}
		})
	})
}
