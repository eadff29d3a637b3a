package extract

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"magpie/internal/model"
)

func TestNormalize(t *testing.T) {
	Convey("Normalize 能清理原始提取文本", t, func() {
		Convey("去掉角色前缀样板", func() {
			So(Normalize("ChatGPT said: Hello there, how can I help?", model.RoleAssistant),
				ShouldEqual, "Hello there, how can I help?")
			So(Normalize("You said: what is the capital of France?", model.RoleUser),
				ShouldEqual, "what is the capital of France?")
			So(Normalize("Assistant: here is the answer", model.RoleAssistant),
				ShouldEqual, "here is the answer")
		})

		Convey("去掉插播样板块", func() {
			raw := "Here is your answer. Upgrade to Plus for faster responses. Learn more. Hope that helps."
			got := Normalize(raw, model.RoleAssistant)
			So(got, ShouldNotContainSubstring, "Upgrade to")
			So(got, ShouldContainSubstring, "Here is your answer.")
			So(got, ShouldContainSubstring, "Hope that helps.")
		})

		Convey("折叠空白并去掉首尾空格", func() {
			So(Normalize("  hello \n\t world  ", model.RoleUser), ShouldEqual, "hello world")
		})

		Convey("过短或全符号的结果返回空串", func() {
			So(Normalize("a", model.RoleUser), ShouldEqual, "")
			So(Normalize("...", model.RoleUser), ShouldEqual, "")
			So(Normalize("!?! --- !!", model.RoleAssistant), ShouldEqual, "")
			So(Normalize("   ", model.RoleUser), ShouldEqual, "")
		})

		Convey("数字算真实内容（用户可能只回一个数）", func() {
			So(Normalize("56", model.RoleUser), ShouldEqual, "56")
		})

		Convey("确定性：同样输入总是同样输出", func() {
			raw := "You said:   What   is 2+2? "
			first := Normalize(raw, model.RoleUser)
			for i := 0; i < 5; i++ {
				So(Normalize(raw, model.RoleUser), ShouldEqual, first)
			}
		})
	})
}
