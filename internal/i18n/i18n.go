// Package i18n holds the message catalogs for the UI chrome. The clear
// confirmation is a fixed string and is not part of any catalog.
package i18n

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

const (
	LocaleEN   = "en"
	LocaleZhCN = "zh-CN"
)

// catalogs 支持的语言；缺失的键回退到英文
// catalogs lists the supported locales; missing keys fall back to English
var catalogs = map[string]map[string]string{
	LocaleEN:   EnMessages,
	LocaleZhCN: ZhCNMessages,
}

// localeEnv is consulted in order; VIBE_LANG wins over the POSIX variables.
var localeEnv = []string{"VIBE_LANG", "LC_ALL", "LC_MESSAGES", "LANG"}

// I18n 一个已解析的语言及其目录；创建后不可变
// I18n is a resolved locale with its catalog; immutable once built
type I18n struct {
	locale  string
	catalog map[string]string
}

var global atomic.Pointer[I18n]

// Global 返回全局实例；未 Init 时按环境变量检测
// Global returns the shared instance, detecting the locale from the environment until Init runs
func Global() *I18n {
	if i := global.Load(); i != nil {
		return i
	}
	global.CompareAndSwap(nil, New(""))
	return global.Load()
}

// Init 用配置中的 ui.locale 替换全局实例；空值表示自动检测
// Init replaces the shared instance with the configured ui.locale; empty means detect
func Init(locale string) {
	global.Store(New(locale))
}

// T translates with the shared instance.
func T(key string, args ...any) string {
	return Global().T(key, args...)
}

func New(locale string) *I18n {
	if strings.TrimSpace(locale) == "" {
		locale = DetectLocale()
	}
	locale = normalizeLocale(locale)
	return &I18n{locale: locale, catalog: catalogs[locale]}
}

// T 查找 key 并按 fmt 规则格式化；未知 key 原样返回
// T looks key up and formats it fmt-style; unknown keys come back verbatim
func (i *I18n) T(key string, args ...any) string {
	tmpl, ok := i.catalog[key]
	if !ok {
		if tmpl, ok = EnMessages[key]; !ok {
			return key
		}
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

func (i *I18n) Locale() string { return i.locale }

// DetectLocale reads the locale environment, defaulting to English.
func DetectLocale() string {
	for _, env := range localeEnv {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" && v != "C" && v != "POSIX" {
			return normalizeLocale(v)
		}
	}
	return LocaleEN
}

// normalizeLocale maps "zh_CN.UTF-8" style values to catalog names. Unknown
// languages keep their tag and are served from the English catalog.
func normalizeLocale(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexAny(s, ".@"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.ReplaceAll(s, "_", "-")
	lower := strings.ToLower(s)
	switch {
	case s == "":
		return LocaleEN
	case strings.HasPrefix(lower, "zh"):
		return LocaleZhCN
	case strings.HasPrefix(lower, "en"):
		return LocaleEN
	}
	return s
}
