package i18n

import "testing"

func TestNew_English(t *testing.T) {
	i := New("en")
	if i.Locale() != "en" {
		t.Fatalf("Locale()=%q, want en", i.Locale())
	}
	got := i.T("help.clear")
	if got != "clear history" {
		t.Fatalf("T(help.clear)=%q, want clear history", got)
	}
}

func TestNew_Chinese(t *testing.T) {
	i := New("zh-CN")
	if i.Locale() != "zh-CN" {
		t.Fatalf("Locale()=%q, want zh-CN", i.Locale())
	}
	got := i.T("help.clear")
	if got != "清空历史" {
		t.Fatalf("T(help.clear)=%q, want 清空历史", got)
	}
}

func TestNew_ChineseFromLang(t *testing.T) {
	i := New("zh_CN.UTF-8")
	if i.Locale() != "zh-CN" {
		t.Fatalf("Locale()=%q, want zh-CN", i.Locale())
	}
	got := i.T("status.ready")
	if got != "就绪" {
		t.Fatalf("T(status.ready)=%q, want 就绪", got)
	}
}

func TestT_WithArgs(t *testing.T) {
	i := New("en")
	got := i.T("error.init", "timeout")
	if got != "Agent failed to initialize: timeout" {
		t.Fatalf("T with args=%q, want Agent failed to initialize: timeout", got)
	}
}

func TestT_MissingKey(t *testing.T) {
	i := New("en")
	got := i.T("nonexistent.key")
	if got != "nonexistent.key" {
		t.Fatalf("T missing key=%q, want key itself", got)
	}
}

func TestNormalizeLocale(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en_US.UTF-8", "en"},
		{"zh_CN.UTF-8", "zh-CN"},
		{"zh_TW", "zh-CN"},
		{"en", "en"},
		{"", "en"},
		{"fr_FR", "fr-FR"},
	}
	for _, tt := range tests {
		got := normalizeLocale(tt.input)
		if got != tt.expected {
			t.Errorf("normalizeLocale(%q)=%q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestGlobal(t *testing.T) {
	g := Global()
	if g == nil {
		t.Fatal("Global() should not be nil")
	}
	// 应该返回同一实例 / Should return same instance
	g2 := Global()
	if g != g2 {
		t.Fatal("Global() should return same instance")
	}
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	for k := range EnMessages {
		if _, ok := ZhCNMessages[k]; !ok {
			t.Errorf("zh-CN catalog is missing %q", k)
		}
	}
	for k := range ZhCNMessages {
		if _, ok := EnMessages[k]; !ok {
			t.Errorf("zh-CN catalog has extra key %q", k)
		}
	}
}

func TestDetectLocale_PrefersVibeLang(t *testing.T) {
	t.Setenv("VIBE_LANG", "zh_CN.UTF-8")
	t.Setenv("LANG", "en_US.UTF-8")
	if got := DetectLocale(); got != "zh-CN" {
		t.Fatalf("DetectLocale()=%q, want zh-CN", got)
	}
}

func TestNew_UnsupportedLocaleFallsBackToEnglish(t *testing.T) {
	i := New("fr_FR.UTF-8")
	if i.Locale() != "fr-FR" {
		t.Fatalf("Locale()=%q, want fr-FR", i.Locale())
	}
	if got := i.T("help.clear"); got != "clear history" {
		t.Fatalf("T(help.clear)=%q, want English fallback", got)
	}
}

func TestDetectLocale_IgnoresPOSIXDefault(t *testing.T) {
	t.Setenv("VIBE_LANG", "")
	t.Setenv("LC_ALL", "C")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "zh_CN.UTF-8")
	if got := DetectLocale(); got != "zh-CN" {
		t.Fatalf("DetectLocale()=%q, want zh-CN", got)
	}
}

func TestInit_ReplacesGlobal(t *testing.T) {
	Init("zh-CN")
	if got := T("status.ready"); got != "就绪" {
		t.Fatalf("T after Init(zh-CN)=%q", got)
	}
	Init("en")
	if got := T("status.ready"); got != "Ready" {
		t.Fatalf("T after Init(en)=%q", got)
	}
}
