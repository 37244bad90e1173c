package i18n

// ZhCNMessages 中文消息目录
// ZhCNMessages is the Simplified Chinese message catalog
var ZhCNMessages = map[string]string{
	"app.title": "vibe",

	"status.ready":     "就绪",
	"status.streaming": "生成中...",
	"status.clearing":  "正在清空历史...",
	"status.blocked":   "不可用",
	"status.tokens":    "%d tokens · $%.4f",
	"status.offline":   "离线",

	"input.placeholder": "输入消息...（回车发送）",

	"help.send":      "发送",
	"help.interrupt": "中断",
	"help.clear":     "清空历史",
	"help.scroll":    "滚动",
	"help.quit":      "退出",

	"role.user":        "你",
	"role.assistant":   "助手",
	"role.system":      "系统",
	"transcript.empty": "暂无消息。",

	"error.init":      "智能体初始化失败：%s",
	"error.init_hint": "请修正配置后重启。按 ctrl+c 退出。",
	"error.busy":      "正忙，请等待当前操作完成。",

	"repl.welcome": "vibe · 模型 %s · ctrl+l 清空历史 · ctrl+d 退出",
	"repl.bye":     "再见。",

	"cmd.init.created": "已写入 %s",
	"cmd.init.exists":  "%s 已存在，未修改",
}
