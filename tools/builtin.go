package tools

import (
	"embed"
	"fmt"
	"html/template"
	"strings"

	printkit "github.com/porticus-lab/go-printkit"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

func mustTemplate(name string) string {
	b, err := templateFS.ReadFile("templates/" + name + ".html.tmpl")
	if err != nil {
		panic(fmt.Sprintf("tools: missing template %s: %v", name, err))
	}
	return string(b)
}

// Default returns a registry with every built-in tool.
func Default() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Builtin returns fresh copies of the built-in tools.
func Builtin() []*Tool {
	return []*Tool{
		IDCard(), JobAd(), Roster(), Rules(), Circular(),
		Resume(), Quote(), UrduPaper(), Resizer(), Plagiarism(),
	}
}

// IDCard is an employee or student identity card.
func IDCard() *Tool {
	return &Tool{
		Name:        "idcard",
		Title:       "ID Card",
		Description: "Identity card with photo, role and validity dates.",
		Schema: printkit.NewSchema("idcard",
			printkit.FieldSpec{Name: "organization", Label: "Organization", Placeholder: "Organization"},
			printkit.FieldSpec{Name: "name", Label: "Full name", Placeholder: "Full Name", Required: true},
			printkit.FieldSpec{Name: "idNumber", Label: "ID number", Placeholder: "ID Number", Required: true},
			printkit.FieldSpec{Name: "position", Label: "Position", Placeholder: "Position"},
			printkit.FieldSpec{Name: "department", Label: "Department", Placeholder: "Department"},
			printkit.FieldSpec{Name: "photo", Label: "Photo", Kind: printkit.KindImage, Placeholder: "Photo"},
			printkit.FieldSpec{Name: "issued", Label: "Issued", Placeholder: "Issue date"},
			printkit.FieldSpec{Name: "expires", Label: "Expires", Placeholder: "Expiry date"},
			printkit.FieldSpec{Name: "accent", Label: "Accent color", Kind: printkit.KindColor, Default: "#1d4ed8"},
			printkit.FieldSpec{Name: "layout", Label: "Layout", Kind: printkit.KindChoice, Default: "horizontal", Choices: []string{"horizontal", "vertical"}},
		),
		Template:       mustTemplate("idcard"),
		FilenameFields: []string{"name", "idNumber"},
		Page:           &printkit.PageConfig{Size: printkit.CR80, Margin: printkit.UniformMargin(0.1), PrintBackground: true},
		Selector:       ".card",
		Version:        2,
		Migrations: map[int]printkit.Migration{
			// Version 1 stored the role as "designation".
			1: func(f map[string]any) (map[string]any, error) {
				if v, ok := f["designation"]; ok {
					if _, has := f["position"]; !has {
						f["position"] = v
					}
					delete(f, "designation")
				}
				return f, nil
			},
		},
	}
}

// JobAd is a one-page job advertisement.
func JobAd() *Tool {
	return &Tool{
		Name:        "jobad",
		Title:       "Job Advertisement",
		Description: "Hiring poster with role, requirements and how to apply.",
		Schema: printkit.NewSchema("jobad",
			printkit.FieldSpec{Name: "company", Label: "Company", Placeholder: "Company Name", Required: true},
			printkit.FieldSpec{Name: "logo", Label: "Logo", Kind: printkit.KindImage, Placeholder: "Logo"},
			printkit.FieldSpec{Name: "title", Label: "Job title", Placeholder: "Job Title", Required: true},
			printkit.FieldSpec{Name: "location", Label: "Location", Placeholder: "Location"},
			printkit.FieldSpec{Name: "type", Label: "Employment type", Kind: printkit.KindChoice, Default: "Full-time", Choices: []string{"Full-time", "Part-time", "Contract", "Internship"}},
			printkit.FieldSpec{Name: "salary", Label: "Salary", Placeholder: "Competitive salary"},
			printkit.FieldSpec{Name: "description", Label: "Description", Kind: printkit.KindMarkdown, Placeholder: "Describe the role."},
			printkit.FieldSpec{Name: "requirements", Label: "Requirements", Kind: printkit.KindMultiline, Placeholder: "One requirement per line"},
			printkit.FieldSpec{Name: "benefits", Label: "Benefits", Kind: printkit.KindMultiline},
			printkit.FieldSpec{Name: "apply", Label: "How to apply", Placeholder: "jobs@example.com"},
			printkit.FieldSpec{Name: "deadline", Label: "Deadline"},
			printkit.FieldSpec{Name: "accent", Label: "Accent color", Kind: printkit.KindColor, Default: "#0f766e"},
		),
		Template:       mustTemplate("jobad"),
		FilenameFields: []string{"company", "title"},
		Page:           &printkit.PageConfig{Size: printkit.A4, PrintBackground: true},
		Version:        1,
	}
}

// Roster is a school assembly schedule.
func Roster() *Tool {
	return &Tool{
		Name:        "roster",
		Title:       "Assembly Roster",
		Description: "Morning assembly schedule with timed activities.",
		Schema: printkit.NewSchema("roster",
			printkit.FieldSpec{Name: "school", Label: "School", Placeholder: "School Name"},
			printkit.FieldSpec{Name: "date", Label: "Date", Placeholder: "Date", Required: true},
			printkit.FieldSpec{Name: "theme", Label: "Theme of the day", Placeholder: "Theme"},
			printkit.FieldSpec{
				Name: "activities", Label: "Activities", Kind: printkit.KindList, Required: true,
				Columns: []string{"time", "activity", "presenter"},
				Default: []printkit.Record{
					{"time": "08:00", "activity": "Recitation", "presenter": ""},
					{"time": "08:05", "activity": "National Anthem", "presenter": ""},
				},
			},
			printkit.FieldSpec{Name: "notes", Label: "Notes", Kind: printkit.KindMultiline},
		),
		Template:       mustTemplate("roster"),
		FilenameFields: []string{"school", "date"},
		Page:           &printkit.PageConfig{Size: printkit.A4, PrintBackground: true},
		Version:        1,
	}
}

// Rules is a printable list of rules.
func Rules() *Tool {
	return &Tool{
		Name:        "rules",
		Title:       "Rules Sheet",
		Description: "Numbered rules for a classroom, lab or office.",
		Schema: printkit.NewSchema("rules",
			printkit.FieldSpec{Name: "title", Label: "Title", Default: "Classroom Rules", Required: true},
			printkit.FieldSpec{Name: "organization", Label: "Organization", Placeholder: "Organization"},
			printkit.FieldSpec{Name: "rules", Label: "Rules", Kind: printkit.KindMultiline, Required: true, Placeholder: "One rule per line"},
			printkit.FieldSpec{Name: "footer", Label: "Footer"},
			printkit.FieldSpec{Name: "style", Label: "Style", Kind: printkit.KindChoice, Default: "classic", Choices: []string{"classic", "modern", "playful"}},
			printkit.FieldSpec{Name: "accent", Label: "Accent color", Kind: printkit.KindColor, Default: "#b91c1c"},
		),
		Template:       mustTemplate("rules"),
		FilenameFields: []string{"title"},
		Page:           &printkit.PageConfig{Size: printkit.A4, PrintBackground: true},
		Version:        1,
	}
}

// Circular is a school circular or notice.
func Circular() *Tool {
	return &Tool{
		Name:        "circular",
		Title:       "School Circular",
		Description: "Official notice with letterhead, subject and signature.",
		Schema: printkit.NewSchema("circular",
			printkit.FieldSpec{Name: "school", Label: "School", Placeholder: "School Name"},
			printkit.FieldSpec{Name: "logo", Label: "Logo", Kind: printkit.KindImage, Placeholder: "Logo"},
			printkit.FieldSpec{Name: "address", Label: "Address"},
			printkit.FieldSpec{Name: "reference", Label: "Reference no.", Placeholder: "Ref. No."},
			printkit.FieldSpec{Name: "date", Label: "Date", Placeholder: "Date"},
			printkit.FieldSpec{Name: "recipient", Label: "Recipient", Default: "All Parents and Guardians"},
			printkit.FieldSpec{Name: "subject", Label: "Subject", Placeholder: "Subject", Required: true},
			printkit.FieldSpec{Name: "body", Label: "Body", Kind: printkit.KindRichText, Placeholder: "Write the circular here.", Required: true},
			printkit.FieldSpec{Name: "signatory", Label: "Signatory", Placeholder: "Principal"},
			printkit.FieldSpec{Name: "designation", Label: "Designation"},
		),
		Template:       mustTemplate("circular"),
		FilenameFields: []string{"subject", "date"},
		Page:           &printkit.PageConfig{Size: printkit.A4, PrintBackground: true},
		Version:        1,
	}
}

// Resume is a one-page résumé.
func Resume() *Tool {
	return &Tool{
		Name:        "resume",
		Title:       "Résumé",
		Description: "One-page résumé with experience, education and skills.",
		Schema: printkit.NewSchema("resume",
			printkit.FieldSpec{Name: "name", Label: "Name", Placeholder: "Your Name", Required: true},
			printkit.FieldSpec{Name: "headline", Label: "Headline", Placeholder: "Professional Title"},
			printkit.FieldSpec{Name: "email", Label: "Email"},
			printkit.FieldSpec{Name: "phone", Label: "Phone"},
			printkit.FieldSpec{Name: "location", Label: "Location"},
			printkit.FieldSpec{Name: "photo", Label: "Photo", Kind: printkit.KindImage, Placeholder: "Photo"},
			printkit.FieldSpec{Name: "summary", Label: "Summary", Kind: printkit.KindMarkdown, Placeholder: "A short professional summary."},
			printkit.FieldSpec{Name: "experience", Label: "Experience", Kind: printkit.KindList, Columns: []string{"role", "company", "period", "details"}},
			printkit.FieldSpec{Name: "education", Label: "Education", Kind: printkit.KindList, Columns: []string{"degree", "school", "year"}},
			printkit.FieldSpec{Name: "skills", Label: "Skills", Kind: printkit.KindMultiline, Placeholder: "One skill per line"},
			printkit.FieldSpec{Name: "accent", Label: "Accent color", Kind: printkit.KindColor, Default: "#334155"},
		),
		Template:       mustTemplate("resume"),
		FilenameFields: []string{"name", "headline"},
		Page:           &printkit.PageConfig{Size: printkit.A4, Margin: printkit.UniformMargin(1), PrintBackground: true},
		Version:        1,
	}
}

// Quote is a square or story-sized quote poster.
func Quote() *Tool {
	return &Tool{
		Name:        "quote",
		Title:       "Quote Poster",
		Description: "Shareable poster of a quote and its author.",
		Schema: printkit.NewSchema("quote",
			printkit.FieldSpec{Name: "quote", Label: "Quote", Kind: printkit.KindMultiline, Placeholder: "Your quote goes here.", Required: true},
			printkit.FieldSpec{Name: "author", Label: "Author", Placeholder: "Author"},
			printkit.FieldSpec{Name: "background", Label: "Background", Kind: printkit.KindColor, Default: "#111827"},
			printkit.FieldSpec{Name: "color", Label: "Text color", Kind: printkit.KindColor, Default: "#f9fafb"},
			printkit.FieldSpec{Name: "font", Label: "Font", Kind: printkit.KindChoice, Default: "serif", Choices: []string{"serif", "sans", "mono"}},
			printkit.FieldSpec{Name: "shape", Label: "Shape", Kind: printkit.KindChoice, Default: "square", Choices: []string{"square", "story", "landscape"}},
		),
		Template:       mustTemplate("quote"),
		Funcs:          template.FuncMap{"fontStack": fontStack},
		FilenameFields: []string{"author"},
		Selector:       ".poster",
		Version:        1,
	}
}

func fontStack(name string) template.CSS {
	switch name {
	case "sans":
		return template.CSS(`"Helvetica Neue", Arial, sans-serif`)
	case "mono":
		return template.CSS(`"JetBrains Mono", Menlo, monospace`)
	}
	return template.CSS(`Georgia, "Times New Roman", serif`)
}

// UrduPaper is a right-to-left examination paper.
func UrduPaper() *Tool {
	return &Tool{
		Name:        "urdupaper",
		Title:       "اردو پرچہ",
		Description: "Urdu examination paper with right-to-left layout.",
		Lang:        "ur",
		Dir:         "rtl",
		Schema: printkit.NewSchema("urdupaper",
			printkit.FieldSpec{Name: "school", Label: "School", Placeholder: "اسکول کا نام"},
			printkit.FieldSpec{Name: "subject", Label: "Subject", Default: "اردو", Required: true},
			printkit.FieldSpec{Name: "class", Label: "Class", Placeholder: "جماعت"},
			printkit.FieldSpec{Name: "time", Label: "Time", Placeholder: "وقت"},
			printkit.FieldSpec{Name: "marks", Label: "Total marks", Placeholder: "کل نمبر"},
			printkit.FieldSpec{Name: "instructions", Label: "Instructions", Kind: printkit.KindMultiline},
			printkit.FieldSpec{Name: "questions", Label: "Questions", Kind: printkit.KindList, Columns: []string{"question", "marks"}, Required: true},
		),
		Template:       mustTemplate("urdupaper"),
		FilenameFields: []string{"subject", "class"},
		Page:           &printkit.PageConfig{Size: printkit.A4, PrintBackground: true},
		Version:        1,
	}
}

// Resizer scales an image to fit a frame and exports it.
func Resizer() *Tool {
	return &Tool{
		Name:        "resizer",
		Title:       "Image Resizer",
		Description: "Fit an image into a frame of a given size.",
		Schema: printkit.NewSchema("resizer",
			printkit.FieldSpec{Name: "image", Label: "Image", Kind: printkit.KindImage, Placeholder: "Image", Required: true},
			printkit.FieldSpec{Name: "width", Label: "Width (px)", Default: "800"},
			printkit.FieldSpec{Name: "height", Label: "Height (px)", Default: "600"},
			printkit.FieldSpec{Name: "fit", Label: "Fit", Kind: printkit.KindChoice, Default: "contain", Choices: []string{"contain", "cover", "fill"}},
			printkit.FieldSpec{Name: "background", Label: "Background", Kind: printkit.KindColor, Default: "#ffffff"},
		),
		Template:       mustTemplate("resizer"),
		Funcs:          template.FuncMap{"px": px},
		FilenameFields: []string{"width", "height"},
		Selector:       ".frame",
		Limits:         printkit.ImageLimits{MaxBytes: 5 << 20, MaxWidth: 4096, MaxHeight: 4096},
		Version:        1,
	}
}

// px returns a CSS pixel length clamped to [1, 4096], or def when s is
// not a number.
func px(s string, def int) template.CSS {
	n := 0
	for _, r := range strings.TrimSpace(s) {
		if r < '0' || r > '9' {
			n = 0
			break
		}
		n = n*10 + int(r-'0')
		if n > 4096 {
			n = 4096
		}
	}
	if n < 1 {
		n = def
	}
	return template.CSS(fmt.Sprintf("%dpx", n))
}

// Plagiarism compares two texts and suggests a paraphrase.
func Plagiarism() *Tool {
	return newPlagiarism(DefaultSynonyms)
}

func newPlagiarism(p Paraphraser) *Tool {
	return &Tool{
		Name:        "plagiarism",
		Title:       "Plagiarism Check",
		Description: "Similarity report between two texts with a suggested rewrite.",
		Schema: printkit.NewSchema("plagiarism",
			printkit.FieldSpec{Name: "title", Label: "Title", Default: "Similarity Report"},
			printkit.FieldSpec{Name: "source", Label: "Source text", Kind: printkit.KindMultiline, Placeholder: "Paste or import the original text.", Required: true},
			printkit.FieldSpec{Name: "candidate", Label: "Submitted text", Kind: printkit.KindMultiline, Placeholder: "Paste or import the text to check.", Required: true},
		),
		Template: mustTemplate("plagiarism"),
		Funcs: template.FuncMap{
			"similarity": func(a, b string) string {
				return fmt.Sprintf("%.0f%%", Similarity(a, b)*100)
			},
			"verdict": func(a, b string) string {
				switch s := Similarity(a, b); {
				case s >= 0.5:
					return "high"
				case s >= 0.2:
					return "moderate"
				default:
					return "low"
				}
			},
			"shared":     SharedPhrases,
			"paraphrase": p.Paraphrase,
		},
		FilenameFields: []string{"title"},
		Page:           &printkit.PageConfig{Size: printkit.A4, PrintBackground: true},
		Version:        1,
	}
}
