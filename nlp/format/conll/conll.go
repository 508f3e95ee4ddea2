package conll

// Package conll reads and writes CoNLL-X format corpora.
// For a description see http://ilk.uvt.nl/conll/#dataformat

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	nlp "tparse/nlp/types"
)

const (
	FIELD_SEPARATOR = "\t"
	NUM_FIELDS      = 10
)

// A Row is a single parsed row of a CoNLL-X data set.
// Unused fields (lemma, feats, phead, pdeprel) are not retained.
type Row struct {
	ID      int
	Form    string
	CPosTag string
	PosTag  string
	Head    int
	DepRel  string
}

func (r Row) String() string {
	headStr := "0"
	if r.Head >= 0 {
		headStr = strconv.Itoa(r.Head)
	}
	fields := []string{
		strconv.Itoa(r.ID),
		r.Form,
		"_",
		r.CPosTag,
		r.PosTag,
		"_",
		headStr,
		r.DepRel,
		"_",
		"_"}
	return strings.Join(fields, FIELD_SEPARATOR)
}

func parseString(value string) string {
	if value == "_" {
		return ""
	}
	return value
}

func ParseRow(record []string) (Row, error) {
	var row Row
	if len(record) != NUM_FIELDS {
		return row, fmt.Errorf("expected %d fields, got %d", NUM_FIELDS, len(record))
	}
	id, err := strconv.Atoi(record[0])
	if err != nil {
		return row, fmt.Errorf("error parsing ID field (%s): %s", record[0], err.Error())
	}
	row.ID = id

	row.Form = parseString(record[1])
	if row.Form == "" {
		return row, fmt.Errorf("empty FORM field")
	}

	row.CPosTag = parseString(record[3])
	row.PosTag = parseString(record[4])
	if row.PosTag == "" {
		row.PosTag = row.CPosTag
	}

	head, err := strconv.Atoi(record[6])
	if err != nil {
		return row, fmt.Errorf("error parsing HEAD field (%s): %s", record[6], err.Error())
	}
	row.Head = head

	row.DepRel = parseString(record[7])
	return row, nil
}

// rowsToSentence converts 1-based CoNLL rows (head 0 = root) to a Sentence
// with 0-based heads (root head = NoHead).
func rowsToSentence(rows []Row) *nlp.Sentence {
	tokens := make([]nlp.Token, len(rows))
	for i, row := range rows {
		label := row.DepRel
		if label == "" {
			label = nlp.NoLabel
		}
		tokens[i] = nlp.Token{
			Word:  row.Form,
			Tag:   row.PosTag,
			Label: label,
			Head:  row.Head - 1,
		}
	}
	return &nlp.Sentence{Tokens: tokens}
}

// SentenceRows converts a sentence back to CoNLL rows using annotated
// head/label values supplied by the caller.
func SentenceRows(sent *nlp.Sentence) []Row {
	rows := make([]Row, sent.Len())
	for i := 0; i < sent.Len(); i++ {
		token := sent.Token(i)
		rows[i] = Row{
			ID:      i + 1,
			Form:    token.Word,
			CPosTag: token.Tag,
			PosTag:  token.Tag,
			Head:    token.Head + 1,
			DepRel:  token.Label,
		}
	}
	return rows
}

// Corpus is a rewindable streaming reader over a CoNLL file.
type Corpus struct {
	path    string
	file    *os.File
	scanner *bufio.Scanner
}

func OpenCorpus(path string) (*Corpus, error) {
	c := &Corpus{path: path}
	if err := c.Rewind(); err != nil {
		return nil, err
	}
	return c, nil
}

// Rewind resets the cursor to the first sentence.
func (c *Corpus) Rewind() error {
	if c.file != nil {
		c.file.Close()
	}
	file, err := os.Open(c.path)
	if err != nil {
		return err
	}
	c.file = file
	c.scanner = bufio.NewScanner(file)
	return nil
}

// Read returns the next sentence, or io.EOF when the corpus is exhausted.
func (c *Corpus) Read() (*nlp.Sentence, error) {
	var rows []Row
	for c.scanner.Scan() {
		line := strings.TrimRight(c.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			if len(rows) > 0 {
				return rowsToSentence(rows), nil
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		record := strings.Split(line, FIELD_SEPARATOR)
		row, err := ParseRow(record)
		if err != nil {
			return nil, fmt.Errorf("%s: %s", c.path, err.Error())
		}
		rows = append(rows, row)
	}
	if err := c.scanner.Err(); err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return rowsToSentence(rows), nil
	}
	return nil, io.EOF
}

func (c *Corpus) Close() error {
	if c.file != nil {
		return c.file.Close()
	}
	return nil
}

// Read loads all sentences from reader.
func Read(reader io.Reader) ([]*nlp.Sentence, error) {
	var (
		sentences []*nlp.Sentence
		rows      []Row
	)
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			if len(rows) > 0 {
				sentences = append(sentences, rowsToSentence(rows))
				rows = nil
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		record := strings.Split(line, FIELD_SEPARATOR)
		row, err := ParseRow(record)
		if err != nil {
			return nil, fmt.Errorf("error processing record at sentence %d: %s", len(sentences), err.Error())
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		sentences = append(sentences, rowsToSentence(rows))
	}
	return sentences, nil
}

func ReadFile(filename string) ([]*nlp.Sentence, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Read(file)
}

// Write outputs sentences in CoNLL-X format.
func Write(writer io.Writer, sentences []*nlp.Sentence) error {
	buffered := bufio.NewWriter(writer)
	for _, sent := range sentences {
		for _, row := range SentenceRows(sent) {
			if _, err := fmt.Fprintln(buffered, row.String()); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(buffered); err != nil {
			return err
		}
	}
	return buffered.Flush()
}

func WriteFile(filename string, sentences []*nlp.Sentence) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return Write(file, sentences)
}
