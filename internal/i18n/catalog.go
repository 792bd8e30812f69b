// Package i18n holds the message catalog for run progress and the locale
// matching used by the HTTP layer.
package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// DefaultLocale is used when no supported locale can be detected.
const DefaultLocale = "en"

var (
	supported = []language.Tag{
		language.English,
		language.Chinese,
	}
	locales = []string{"en", "zh"}
	matcher = language.NewMatcher(supported)
)

var chineseRegions = map[string]bool{
	"CN": true,
	"TW": true,
	"HK": true,
	"MO": true,
	"SG": true,
}

var messages = map[string]map[string]string{
	"en": {
		"run.queued":           "Queued for cleaning",
		"run.reading_source":   "Reading source media",
		"run.cleaning_image":   "Removing watermarks",
		"run.extracting_frame": "Extracting reference frame",
		"run.cleaning_frame":   "Cleaning reference frame",
		"run.rendering_video":  "Rendering cleaned video",
		"run.rendering_poll":   "Rendering cleaned video (check %d)",
		"run.fetching_video":   "Downloading rendered video",
		"run.saving_result":    "Saving result",
		"run.succeeded":        "Cleaning finished",
		"run.failed":           "Cleaning failed",
		"run.awaiting_access":  "Video cleaning needs authorization; access has been requested",
	},
	"zh": {
		"run.queued":           "排队等待清理",
		"run.reading_source":   "正在读取源文件",
		"run.cleaning_image":   "正在移除水印",
		"run.extracting_frame": "正在提取参考帧",
		"run.cleaning_frame":   "正在清理参考帧",
		"run.rendering_video":  "正在渲染清理后的视频",
		"run.rendering_poll":   "正在渲染清理后的视频（第 %d 次查询）",
		"run.fetching_video":   "正在下载渲染结果",
		"run.saving_result":    "正在保存结果",
		"run.succeeded":        "清理完成",
		"run.failed":           "清理失败",
		"run.awaiting_access":  "视频清理需要授权，已发出授权请求",
	},
}

// Normalize maps an arbitrary locale string onto a supported catalog locale.
// Unknown or empty input falls back to English.
func Normalize(locale string) string {
	if strings.TrimSpace(locale) == "" {
		return DefaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return DefaultLocale
	}
	_, idx, _ := matcher.Match(tag)
	return locales[idx]
}

// FromAcceptLanguage resolves an Accept-Language header against the catalog.
// It returns empty when the header names no supported language, so callers
// can continue down their detection chain.
func FromAcceptLanguage(header string) string {
	if strings.TrimSpace(header) == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return ""
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return ""
	}
	return locales[idx]
}

// CountryLocale suggests a locale for an ISO country code, or empty when the
// country implies none.
func CountryLocale(country string) string {
	if chineseRegions[strings.ToUpper(strings.TrimSpace(country))] {
		return "zh"
	}
	return ""
}

// T renders the message for key in the given locale, falling back to English
// and finally to the key itself.
func T(locale, key string, args ...any) string {
	table := messages[Normalize(locale)]
	msg, ok := table[key]
	if !ok {
		msg = messages[DefaultLocale][key]
	}
	if msg == "" {
		return key
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
