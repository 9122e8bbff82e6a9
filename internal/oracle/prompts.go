// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import (
	"bytes"
	"text/template"
)

// Prompt templates, one per language. Every prompt asks for a single JSON
// object; the answer is validated against a schema before use.

var extractPromptEN = template.Must(template.New("extract-en").Parse(`Extract book information from the following query: '{{.Query}}'

Respond in JSON format only, like this:
{
    "title": "Book Title",
    "author": "Author Name",
    "categories": ["Category1", "Category2"],
    "language": "en",
    "search_variations": ["search variation 1", "search variation 2"],
    "description": "Brief description of the book",
    "is_arabic_query": false
}

If information is not available, use null.
For categories, use common genres like: "Fiction", "History", "Science", "Philosophy", "Religion", "Poetry", "Novel", "Biography".
Generate 2-3 search variations to improve catalog search results.
`))

var extractPromptAR = template.Must(template.New("extract-ar").Parse(`استخرج معلومات الكتاب من الاستعلام التالي: '{{.Query}}'

أجب بتنسيق JSON فقط، مثل هذا:
{
    "title": "عنوان الكتاب",
    "author": "اسم المؤلف",
    "categories": ["الفئة الأولى", "الفئة الثانية"],
    "language": "ar",
    "search_variations": ["تنويع البحث 1", "تنويع البحث 2", "تنويع البحث 3"],
    "description": "وصف مختصر للكتاب",
    "is_arabic_query": true
}

متطلبات مهمة:
- إذا كان الاستعلام يحتوي على أسماء مؤلفين مشهورين، استخرج الاسم بدقة
- أنشئ 3-4 تنويعات بحث مختلفة لتحسين نتائج البحث
- للفئات، استخدم أسماء عربية مثل: "الأدب", "التاريخ", "العلوم", "الفلسفة", "الدين", "الشعر", "الرواية", "المال والأعمال"
- إذا لم تكن المعلومات متوفرة، استخدم null
`))

var multiLinkPromptEN = template.Must(template.New("links-en").Parse(`Find multiple direct PDF download links for the book "{{.Title}}" by "{{.Author}}".

Respond in JSON format only:
{
    "pdf_urls": [
        {"url": "https://archive.org/download/identifier/book.pdf", "source": "Internet Archive", "reliability": 0.9},
        {"url": "https://www.gutenberg.org/files/123/123.pdf", "source": "Project Gutenberg", "reliability": 0.95}
    ]
}

Requirements:
- Search reliable sources: Internet Archive, Project Gutenberg, digital libraries
- Only return direct PDF download URLs ending with .pdf
- Order results by reliability score (0.0 to 1.0)
- Focus on public domain and open access books
- If no PDFs are found, return an empty array
`))

var multiLinkPromptAR = template.Must(template.New("links-ar").Parse(`ابحث عن روابط تحميل PDF متعددة للكتاب "{{.Title}}" للمؤلف "{{.Author}}".

أجب بتنسيق JSON فقط:
{
    "pdf_urls": [
        {"url": "https://archive.org/download/identifier/book.pdf", "source": "Internet Archive", "reliability": 0.9},
        {"url": "https://www.gutenberg.org/files/123/123.pdf", "source": "Project Gutenberg", "reliability": 0.95}
    ]
}

متطلبات:
- ابحث في المصادر الموثوقة: Internet Archive, Project Gutenberg, المكتبات الرقمية
- أعطني فقط روابط PDF مباشرة تنتهي بـ .pdf
- رتب النتائج حسب الموثوقية (reliability)
- إذا لم تجد أي روابط، أرجع قائمة فارغة
`))

var singleLinkPromptEN = template.Must(template.New("link-en").Parse(`Find a direct PDF download link for the book "{{.Title}}" by "{{.Author}}".

Respond in JSON format only:
{
    "pdf_url": "https://example.com/book.pdf",
    "source": "source name",
    "confidence": 0.8
}

Requirements:
- Only return URLs that end with .pdf or contain /download/ and lead to actual PDF files
- Do NOT return HTML pages, search pages, or book information pages
- Prefer Internet Archive (archive.org/download/...) and Project Gutenberg PDF files
- If you cannot find a direct PDF download link, use null for pdf_url
`))

var singleLinkPromptAR = template.Must(template.New("link-ar").Parse(`ابحث عن رابط تحميل مباشر لملف PDF للكتاب "{{.Title}}" للمؤلف "{{.Author}}".

أجب بتنسيق JSON فقط:
{
    "pdf_url": "https://example.com/book.pdf",
    "source": "اسم المصدر",
    "confidence": 0.8
}

متطلبات مهمة:
- أعطني فقط روابط تنتهي بـ .pdf أو تحتوي على /download/ وتؤدي إلى ملفات PDF فعلية
- لا تعطني صفحات HTML أو صفحات بحث أو صفحات معلومات الكتاب
- ركز على Internet Archive (archive.org/download/...) ونسخ PDF من Project Gutenberg والمكتبات الرقمية العربية
- إذا لم تتمكن من العثور على رابط تحميل PDF مباشر، استخدم null للـ pdf_url
`))

var enrichPromptEN = template.Must(template.New("enrich-en").Parse(`For the book "{{.Title}}" by "{{.Author}}" with categories: {{.Categories}}

Create structured information in JSON format (ALL IN ENGLISH):
{
    "categories": [
        {"name": "Category Name", "icon": "📚", "wikilink": "https://en.wikipedia.org/wiki/...", "description": "About 60 words describing this category"}
    ],
    "author": {
        "name": "{{.Author}}",
        "image": "author image URL or null",
        "wikilink": "https://en.wikipedia.org/wiki/...",
        "profession": ["Writer", "Novelist"],
        "descriptions": ["About 60 words on the author's life and major works", "Their style and influence"]
    },
    "book_summary": "About 100 words summarizing the book"
}

Requirements:
- Use real Wikipedia links when possible, otherwise null
- Use fitting emojis: Fiction 📖, Science 🔬, History 📜, Philosophy 🤔, Romance 💕, Mystery 🔍, Biography 👤, Poetry 📝
- If the author is unknown, use null for author
`))

var enrichPromptAR = template.Must(template.New("enrich-ar").Parse(`للكتاب "{{.Title}}" للمؤلف "{{.Author}}" مع الفئات: {{.Categories}}

أنشئ معلومات منظمة باللغة العربية فقط بتنسيق JSON:
{
    "categories": [
        {"name": "اسم الفئة بالعربية", "icon": "📚", "wikilink": "https://ar.wikipedia.org/wiki/...", "description": "وصف للفئة في نحو 60 كلمة"}
    ],
    "author": {
        "name": "{{.Author}}",
        "image": "رابط صورة المؤلف أو null",
        "wikilink": "https://ar.wikipedia.org/wiki/...",
        "profession": ["كاتب", "روائي"],
        "descriptions": ["وصف للمؤلف في نحو 60 كلمة عن حياته وأعماله", "أسلوبه وتأثيره الأدبي"]
    },
    "book_summary": "ملخص الكتاب في نحو 100 كلمة"
}

قواعد:
- جميع الأسماء والأوصاف بالعربية الفصحى فقط
- استخدم روابط ويكيبيديا عربية حقيقية، وإلا فاستخدم null
- إذا كان المؤلف غير معروف، استخدم null للمؤلف
`))

var describePromptEN = template.Must(template.New("describe-en").Parse(`Write a description of the book "{{.Title}}" by "{{.Author}}" in English (80-150 words).
{{if .Description}}
Current description: {{.Description}}
{{end}}
Cover the content, the book's significance, and its intended readers.

Respond in JSON format only:
{"description": "..."}
`))

var describePromptAR = template.Must(template.New("describe-ar").Parse(`اكتب وصفاً للكتاب "{{.Title}}" للمؤلف "{{.Author}}" باللغة العربية (80-150 كلمة).
{{if .Description}}
الوصف الحالي: {{.Description}}
{{end}}
يتضمن الوصف ملخص المحتوى وأهمية الكتاب والجمهور المستهدف.

أجب بتنسيق JSON فقط:
{"description": "..."}
`))

type promptSet struct {
	extract, multiLink, singleLink *template.Template
	enrich, describe               *template.Template
}

var prompts = map[string]promptSet{
	"en": {extractPromptEN, multiLinkPromptEN, singleLinkPromptEN, enrichPromptEN, describePromptEN},
	"ar": {extractPromptAR, multiLinkPromptAR, singleLinkPromptAR, enrichPromptAR, describePromptAR},
}

// promptsFor returns the Arabic prompts for "ar" and the English ones for
// every other language.
func promptsFor(language string) promptSet {
	if p, ok := prompts[language]; ok {
		return p
	}
	return prompts["en"]
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
