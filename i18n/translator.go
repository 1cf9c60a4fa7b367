package i18n

import "strings"

// Translator retrieves localized messages for Issue codes.
// data provides optional values substituted into "{name}" placeholders
// (for example "type" or "class").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

var messages = map[string]map[string]string{
	"en": {
		"unknown_format":               "no backend registered for format",
		"unsupported_type":             "unsupported type",
		"invalid_type":                 "invalid type",
		"circular_reference":           "circular reference in type graph",
		"ambiguous_union":              "ambiguous hierarchical level in union",
		"invalid_hook":                 "hook violates its contract",
		"invalid_resource":             "cannot read resource",
		"unexpected_value":             "unexpected value",
		"invalid_constructor_argument": "invalid constructor argument",
		"unexpected_type":              "unexpected type",
		"must_be_public":               "property must be public",
		"enum_value":                   "unexpected value for backed enum",
		"union_no_selector":            "cannot pick a union member without a selector",
	},
	"ja": {
		"unknown_format":               "フォーマットのバックエンドが登録されていません",
		"unsupported_type":             "サポートされていない型です",
		"invalid_type":                 "型が不正です",
		"circular_reference":           "型グラフに循環参照があります",
		"ambiguous_union":              "ユニオンの階層レベルが曖昧です",
		"invalid_hook":                 "フックが契約に違反しています",
		"invalid_resource":             "リソースを読み取れません",
		"unexpected_value":             "予期しない値です",
		"invalid_constructor_argument": "コンストラクタ引数が不正です",
		"unexpected_type":              "予期しない型です",
		"must_be_public":               "プロパティは公開されている必要があります",
		"enum_value":                   "列挙型に対する予期しない値です",
		"union_no_selector":            "セレクタなしではユニオンのメンバーを選べません",
	},
}

func (t dictTranslator) Message(code string, data map[string]string) string {
	msg, ok := messages[t.lang][code]
	if !ok {
		return code
	}
	for k, v := range data {
		msg = strings.ReplaceAll(msg, "{"+k+"}", v)
	}
	return msg
}

var currentTranslator Translator = dictTranslator{lang: "en"}

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	currentTranslator = dictTranslator{lang: lang}
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		return
	}
	currentTranslator = tr
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string { return currentTranslator.Message(code, data) }
