package kv

import (
	"context"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"magpie/internal/config"
)

func TestBoltStore(t *testing.T) {
	Convey("BoltStore 本地回退存储", t, func() {
		path := filepath.Join(t.TempDir(), "kv", "test.bolt")
		s, err := NewBoltStore(path)
		So(err, ShouldBeNil)
		Reset(func() { _ = s.Close() })

		ctx := context.Background()

		Convey("Set 后 Get 返回写入的值", func() {
			So(s.Set(ctx, map[string][]byte{
				"alpha": []byte("one"),
				"beta":  []byte("two"),
			}), ShouldBeNil)

			got, err := s.Get(ctx, "alpha", "beta", "missing")
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 2)
			So(string(got["alpha"]), ShouldEqual, "one")
			So(string(got["beta"]), ShouldEqual, "two")
		})

		Convey("缺失的 key 不出现在结果中", func() {
			got, err := s.Get(ctx, "nothing")
			So(err, ShouldBeNil)
			So(got, ShouldBeEmpty)
		})

		Convey("Remove 删除后不可见，删不存在的 key 不报错", func() {
			So(s.Set(ctx, map[string][]byte{"gone": []byte("x")}), ShouldBeNil)
			So(s.Remove(ctx, "gone", "never-there"), ShouldBeNil)

			got, err := s.Get(ctx, "gone")
			So(err, ShouldBeNil)
			So(got, ShouldBeEmpty)
		})

		Convey("Keys 列出全部 key", func() {
			So(s.Set(ctx, map[string][]byte{
				"k1": []byte("v"),
				"k2": []byte("v"),
			}), ShouldBeNil)

			keys, err := s.Keys(ctx)
			So(err, ShouldBeNil)
			So(keys, ShouldHaveLength, 2)
			So(keys, ShouldContain, "k1")
			So(keys, ShouldContain, "k2")
		})

		Convey("覆盖写入保留最新值", func() {
			So(s.Set(ctx, map[string][]byte{"k": []byte("old")}), ShouldBeNil)
			So(s.Set(ctx, map[string][]byte{"k": []byte("new")}), ShouldBeNil)

			got, _ := s.Get(ctx, "k")
			So(string(got["k"]), ShouldEqual, "new")
		})

		Convey("Ping 与 Name", func() {
			So(s.Ping(ctx), ShouldBeNil)
			So(s.Name(), ShouldEqual, "bolt")
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("Open 按配置选择后端", t, func() {
		Convey("显式 bolt 后端", func() {
			cfg := &config.KVConfig{
				Backend: "bolt",
				Bolt:    config.BoltConfig{Path: filepath.Join(t.TempDir(), "open.bolt")},
			}
			s, err := Open(context.Background(), cfg)
			So(err, ShouldBeNil)
			So(s.Name(), ShouldEqual, "bolt")
			So(s.Close(), ShouldBeNil)
		})

		Convey("auto 在远程后端未配置时落到 bolt", func() {
			cfg := &config.KVConfig{
				Backend: "auto",
				Bolt:    config.BoltConfig{Path: filepath.Join(t.TempDir(), "auto.bolt")},
			}
			s, err := Open(context.Background(), cfg)
			So(err, ShouldBeNil)
			So(s.Name(), ShouldEqual, "bolt")
			So(s.Close(), ShouldBeNil)
		})

		Convey("未知后端报错", func() {
			_, err := Open(context.Background(), &config.KVConfig{Backend: "etcd"})
			So(err, ShouldNotBeNil)
		})
	})
}
