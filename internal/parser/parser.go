// Package parser reads study cards out of markdown decks.
//
// A card starts at a line beginning with "Q:" and may carry an "A:" answer and
// a "C:" context. Any field can continue over several lines. A new "Q:" line
// or a "---" separator ends the current card; text outside a card is ignored.
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	contextPrefix  = "C:"
	separator      = "---"
)

// Entry is one card as written in a deck.
type Entry struct {
	Question string
	Answer   string
	Context  string
	Line     int // line of the "Q:" that opened the card
}

// ParseError reports a malformed card. The rest of the deck is still parsed.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

type field int

const (
	none field = iota
	question
	answer
	context
)

// ParseFile parses the deck at path. Errors about individual cards name the file.
func ParseFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := Parse(f)
	var perr *ParseError
	if err != nil && !errors.As(err, &perr) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return entries, withFile(err, path)
}

func withFile(err error, path string) error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs := joined.Unwrap()
		for _, e := range errs {
			if perr, ok := e.(*ParseError); ok {
				perr.File = path
			}
		}
		return errors.Join(errs...)
	}
	return err
}

// Parse extracts every card from r. When some cards are malformed it returns
// the well-formed ones together with the joined *ParseError values.
func Parse(r io.Reader) ([]Entry, error) {
	p := &deckParser{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.line++
		p.feed(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	p.finish()
	return p.entries, errors.Join(p.errs...)
}

type deckParser struct {
	line    int
	current field
	entry   Entry
	block   []string
	entries []Entry
	errs    []error
}

func (p *deckParser) feed(line string) {
	if strings.TrimSpace(line) == separator {
		p.finish()
		return
	}

	switch {
	case strings.HasPrefix(line, questionPrefix):
		p.finish()
		p.entry.Line = p.line
		p.start(question, line[len(questionPrefix):])
	case p.current == none:
		// prose between cards
	case strings.HasPrefix(line, answerPrefix):
		p.flush()
		p.start(answer, line[len(answerPrefix):])
	case strings.HasPrefix(line, contextPrefix):
		p.flush()
		p.start(context, line[len(contextPrefix):])
	default:
		p.block = append(p.block, line)
	}
}

func (p *deckParser) start(f field, rest string) {
	p.current = f
	p.block = append(p.block[:0], strings.TrimPrefix(rest, " "))
}

// flush stores the accumulated block into the field being read.
func (p *deckParser) flush() {
	content := strings.TrimRight(strings.Join(p.block, "\n"), " \t\n")
	switch p.current {
	case question:
		p.entry.Question = content
	case answer:
		p.entry.Answer = content
	case context:
		p.entry.Context = content
	}
	p.block = p.block[:0]
}

func (p *deckParser) finish() {
	if p.current == none {
		return
	}
	p.flush()
	switch {
	case strings.TrimSpace(p.entry.Question) == "":
		p.errs = append(p.errs, &ParseError{Line: p.entry.Line, Msg: "card has an empty question"})
	case strings.TrimSpace(p.entry.Answer) == "":
		p.errs = append(p.errs, &ParseError{Line: p.entry.Line, Msg: "question has no answer"})
	default:
		p.entries = append(p.entries, p.entry)
	}
	p.entry = Entry{}
	p.current = none
}
