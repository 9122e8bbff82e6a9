// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import "strings"

// arabicCategories maps common English catalog subjects to Arabic.
var arabicCategories = map[string]string{
	"fiction":            "الخيال",
	"literature":         "الأدب",
	"novel":              "الرواية",
	"poetry":             "الشعر",
	"drama":              "المسرح",
	"short stories":      "القصص القصيرة",
	"classic literature": "الأدب الكلاسيكي",
	"modern literature":  "الأدب الحديث",
	"arabic literature":  "الأدب العربي",
	"world literature":   "الأدب العالمي",
	"biography":          "السيرة الذاتية",
	"autobiography":      "السيرة الذاتية",
	"memoir":             "المذكرات",
	"history":            "التاريخ",
	"philosophy":         "الفلسفة",
	"religion":           "الدين",
	"islamic studies":    "الدراسات الإسلامية",
	"theology":           "علم اللاهوت",
	"spirituality":       "الروحانية",
	"science":            "العلوم",
	"physics":            "الفيزياء",
	"chemistry":          "الكيمياء",
	"biology":            "الأحياء",
	"mathematics":        "الرياضيات",
	"medicine":           "الطب",
	"psychology":         "علم النفس",
	"sociology":          "علم الاجتماع",
	"anthropology":       "علم الإنسان",
	"art":                "الفن",
	"music":              "الموسيقى",
	"painting":           "الرسم",
	"sculpture":          "النحت",
	"architecture":       "العمارة",
	"photography":        "التصوير",
	"cinema":             "السينما",
	"theater":            "المسرح",
	"romance":            "الرومانسية",
	"mystery":            "الغموض",
	"adventure":          "المغامرة",
	"fantasy":            "الفانتازيا",
	"thriller":           "الإثارة",
	"horror":             "الرعب",
	"business":           "المال والأعمال",
}

// englishCategories is the reverse of arabicCategories. Where two English
// names share an Arabic one, the alphabetically first wins.
var englishCategories = func() map[string]string {
	m := make(map[string]string, len(arabicCategories))
	for en, ar := range arabicCategories {
		if prev, ok := m[ar]; !ok || en < prev {
			m[ar] = en
		}
	}
	for ar, en := range m {
		m[ar] = strings.ToUpper(en[:1]) + en[1:]
	}
	return m
}()

// MapCategory translates a category name into language ("ar" or "en").
// Unknown names and other languages are returned unchanged.
func MapCategory(name, language string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return name
	}
	switch language {
	case "ar":
		if ar, ok := arabicCategories[key]; ok {
			return ar
		}
	case "en":
		if en, ok := englishCategories[strings.TrimSpace(name)]; ok {
			return en
		}
	}
	return name
}

// MapCategories maps every name and drops empty names and case-insensitive
// duplicates, keeping first-seen order.
func MapCategories(names []string, language string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		m := strings.TrimSpace(MapCategory(n, language))
		if m == "" || seen[strings.ToLower(m)] {
			continue
		}
		seen[strings.ToLower(m)] = true
		out = append(out, m)
	}
	return out
}
