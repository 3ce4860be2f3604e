// Package markdown converts a markdown document into slide structures. The
// dialect is deliberately line-oriented: level-1/2 headings split slides,
// fenced code becomes code or diagram blocks, bullet and numbered lists
// become list blocks, blockquotes and paragraphs become text blocks. Parsing
// is a pure function of the input string.
package markdown

import (
	"regexp"
	"strings"

	"github.com/loonghao/ppt-kit/internal/models"
)

// UntitledSlideTitle is used when content appears before any heading.
const UntitledSlideTitle = "Untitled"

var (
	headingRe  = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	bulletRe   = regexp.MustCompile(`^\s*[-*+]\s+(.*)$`)
	numberedRe = regexp.MustCompile(`^\s*\d+[.)]\s+(.*)$`)
	fenceRe    = regexp.MustCompile("^```\\s*([A-Za-z0-9_+-]*)\\s*$")
	quoteRe    = regexp.MustCompile(`^>\s?(.*)$`)
)

// Parse converts markdown into slides. The same input always yields the same
// structure; no ids are assigned here (that is the executing backend's job).
func Parse(markdown string) []models.Slide {
	p := &parser{}

	inFence := false
	fenceLang := ""
	var fenceLines []string

	for _, line := range strings.Split(markdown, "\n") {
		if inFence {
			if fenceRe.MatchString(line) && strings.TrimSpace(line) == "```" {
				p.addFence(fenceLang, strings.Join(fenceLines, "\n"))
				inFence = false
				fenceLines = nil
				continue
			}
			fenceLines = append(fenceLines, line)
			continue
		}

		if m := fenceRe.FindStringSubmatch(line); m != nil {
			p.flushAll()
			inFence = true
			fenceLang = m[1]
			continue
		}

		if m := headingRe.FindStringSubmatch(line); m != nil {
			depth := len(m[1])
			text := strings.TrimSpace(m[2])
			if depth <= 2 {
				p.flushAll()
				p.startSlide(text)
			} else {
				p.flushAll()
				p.addSubheading(text, depth)
			}
			continue
		}

		if m := bulletRe.FindStringSubmatch(line); m != nil {
			p.flushParagraph()
			p.flushQuote()
			p.list = append(p.list, m[1])
			continue
		}
		if m := numberedRe.FindStringSubmatch(line); m != nil {
			p.flushParagraph()
			p.flushQuote()
			p.list = append(p.list, m[1])
			continue
		}

		if m := quoteRe.FindStringSubmatch(line); m != nil {
			p.flushParagraph()
			p.flushList()
			p.quote = append(p.quote, m[1])
			continue
		}

		if strings.TrimSpace(line) == "" {
			p.flushAll()
			continue
		}

		p.flushList()
		p.flushQuote()
		p.para = append(p.para, strings.TrimSpace(line))
	}

	// An unterminated fence still contributes its collected lines.
	if inFence {
		p.addFence(fenceLang, strings.Join(fenceLines, "\n"))
	}
	p.flushAll()

	for i := range p.slides {
		p.slides[i].Layout = SelectLayout(p.slides[i].Blocks)
	}
	return p.slides
}

// SelectLayout picks a slide layout from its blocks, evaluated in priority
// order: empty → title; code-heavy → code-focus; visual → image-focus;
// dense → two-column; otherwise content.
func SelectLayout(blocks []models.ContentBlock) models.SlideLayout {
	if len(blocks) == 0 {
		return models.LayoutTitle
	}
	hasCode := false
	hasVisual := false
	for _, b := range blocks {
		switch b.Type {
		case models.ContentCode:
			hasCode = true
		case models.ContentImage, models.ContentDiagram:
			hasVisual = true
		}
	}
	if hasCode && len(blocks) <= 2 {
		return models.LayoutCodeFocus
	}
	if hasVisual {
		return models.LayoutImageFocus
	}
	if len(blocks) >= 4 {
		return models.LayoutTwoColumn
	}
	return models.LayoutContent
}

// parser accumulates slides and the current paragraph/list/quote run. At most
// one accumulator is non-empty at a time.
type parser struct {
	slides []models.Slide
	para   []string
	list   []string
	quote  []string
}

// startSlide begins a new slide with the given title.
func (p *parser) startSlide(title string) {
	p.slides = append(p.slides, models.Slide{Title: title})
}

// current returns the slide under construction, creating the implicit
// untitled slide if content precedes any heading.
func (p *parser) current() *models.Slide {
	if len(p.slides) == 0 {
		p.startSlide(UntitledSlideTitle)
	}
	return &p.slides[len(p.slides)-1]
}

func (p *parser) addBlock(b models.ContentBlock) {
	s := p.current()
	s.Blocks = append(s.Blocks, b)
}

func (p *parser) addFence(lang, content string) {
	if lang == "mermaid" {
		p.addBlock(models.ContentBlock{Type: models.ContentDiagram, Content: content})
		return
	}
	if lang == "" {
		lang = "plaintext"
	}
	p.addBlock(models.ContentBlock{Type: models.ContentCode, Content: content, Language: lang})
}

// addSubheading renders a depth>2 heading as emphasized text. Font size
// starts at 18 for depth 3 and shrinks by 2 per extra level.
func (p *parser) addSubheading(text string, depth int) {
	size := 18 - 2*(depth-3)
	p.addBlock(models.ContentBlock{
		Type:    models.ContentText,
		Content: text,
		Style:   &models.TextStyle{FontSize: size, Bold: true},
	})
}

func (p *parser) flushParagraph() {
	if len(p.para) == 0 {
		return
	}
	p.addBlock(models.ContentBlock{Type: models.ContentText, Content: strings.Join(p.para, " ")})
	p.para = nil
}

func (p *parser) flushList() {
	if len(p.list) == 0 {
		return
	}
	p.addBlock(models.ContentBlock{Type: models.ContentList, Content: strings.Join(p.list, "\n")})
	p.list = nil
}

func (p *parser) flushQuote() {
	if len(p.quote) == 0 {
		return
	}
	p.addBlock(models.ContentBlock{
		Type:    models.ContentText,
		Content: strings.Join(p.quote, " "),
		Style:   &models.TextStyle{Italic: true},
	})
	p.quote = nil
}

func (p *parser) flushAll() {
	p.flushParagraph()
	p.flushList()
	p.flushQuote()
}
