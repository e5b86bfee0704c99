package soniox

import "sort"

// Languages maps the language codes accepted as hints and translation
// targets to their English names.
var Languages = map[string]string{
	"af": "Afrikaans",
	"sq": "Albanian",
	"ar": "Arabic",
	"az": "Azerbaijani",
	"eu": "Basque",
	"be": "Belarusian",
	"bn": "Bengali",
	"bs": "Bosnian",
	"bg": "Bulgarian",
	"ca": "Catalan",
	"zh": "Chinese",
	"hr": "Croatian",
	"cs": "Czech",
	"da": "Danish",
	"nl": "Dutch",
	"en": "English",
	"et": "Estonian",
	"fi": "Finnish",
	"fr": "French",
	"gl": "Galician",
	"de": "German",
	"el": "Greek",
	"gu": "Gujarati",
	"he": "Hebrew",
	"hi": "Hindi",
	"hu": "Hungarian",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"kn": "Kannada",
	"kk": "Kazakh",
	"ko": "Korean",
	"lv": "Latvian",
	"lt": "Lithuanian",
	"mk": "Macedonian",
	"ms": "Malay",
	"ml": "Malayalam",
	"mr": "Marathi",
	"no": "Norwegian",
	"fa": "Persian",
	"pl": "Polish",
	"pt": "Portuguese",
	"pa": "Punjabi",
	"ro": "Romanian",
	"ru": "Russian",
	"sr": "Serbian",
	"sk": "Slovak",
	"sl": "Slovenian",
	"es": "Spanish",
	"sw": "Swahili",
	"sv": "Swedish",
	"tl": "Tagalog",
	"ta": "Tamil",
	"te": "Telugu",
	"th": "Thai",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"ur": "Urdu",
	"vi": "Vietnamese",
	"cy": "Welsh",
}

// IsSupportedLanguage reports whether code is a known language code
func IsSupportedLanguage(code string) bool {
	_, ok := Languages[code]
	return ok
}

// LanguageCodes returns all known codes, sorted
func LanguageCodes() []string {
	codes := make([]string, 0, len(Languages))
	for c := range Languages {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
