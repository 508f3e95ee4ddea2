package util

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// TermFrequencyMap is a bidirectional term <-> id mapping with term
// frequencies. Ids are dense and assigned by decreasing frequency (ties
// broken lexicographically), so pruning by frequency always keeps an
// id-prefix of the map.
type TermFrequencyMap struct {
	mu    sync.RWMutex
	index map[string]int
	data  []termData
}

type termData struct {
	Term string
	Freq int64
}

func NewTermFrequencyMap() *TermFrequencyMap {
	return &TermFrequencyMap{
		index: make(map[string]int),
		data:  make([]termData, 0, 100),
	}
}

func (m *TermFrequencyMap) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Increment adds one occurrence of term, creating it if needed, and returns
// the term's id. Ids handed out during building are insertion-ordered; call
// Save and re-Load to get the canonical frequency-sorted ids.
func (m *TermFrequencyMap) Increment(term string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, exists := m.index[term]; exists {
		m.data[id].Freq++
		return id
	}
	id := len(m.data)
	m.index[term] = id
	m.data = append(m.data, termData{term, 1})
	return id
}

// LookupIndex returns the id of term, or unknown if the term is not mapped.
func (m *TermFrequencyMap) LookupIndex(term string, unknown int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, exists := m.index[term]; exists {
		return id
	}
	return unknown
}

func (m *TermFrequencyMap) GetTerm(id int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id < 0 || id >= len(m.data) {
		panic(fmt.Sprintf("term id out of range: %v of %v", id, len(m.data)))
	}
	return m.data[id].Term
}

func (m *TermFrequencyMap) GetFrequency(id int) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id < 0 || id >= len(m.data) {
		panic(fmt.Sprintf("term id out of range: %v of %v", id, len(m.data)))
	}
	return m.data[id].Freq
}

// Save writes the map as a text file: a line with the number of terms
// followed by one "term freq" line per term, most frequent first.
func (m *TermFrequencyMap) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sorted := make([]termData, len(m.data))
	copy(sorted, m.data)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Freq != sorted[j].Freq {
			return sorted[i].Freq > sorted[j].Freq
		}
		return sorted[i].Term < sorted[j].Term
	})

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "%d\n", len(sorted))
	for _, td := range sorted {
		fmt.Fprintf(writer, "%s %d\n", td.Term, td.Freq)
	}
	return writer.Flush()
}

// LoadTermFrequencyMap reads a map written by Save, dropping terms with
// frequency below minFrequency and, if maxNumTerms > 0, keeping only the
// maxNumTerms most frequent terms.
func LoadTermFrequencyMap(path string, minFrequency, maxNumTerms int) (*TermFrequencyMap, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		return nil, fmt.Errorf("term map %s: missing term count header", path)
	}
	total, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return nil, fmt.Errorf("term map %s: bad term count %q", path, scanner.Text())
	}

	m := NewTermFrequencyMap()
	for i := 0; i < total; i++ {
		if !scanner.Scan() {
			return nil, fmt.Errorf("term map %s: expected %d terms, got %d", path, total, i)
		}
		line := scanner.Text()
		split := strings.LastIndex(line, " ")
		if split <= 0 {
			return nil, fmt.Errorf("term map %s: malformed line %q", path, line)
		}
		term := line[:split]
		freq, err := strconv.ParseInt(line[split+1:], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("term map %s: bad frequency in %q", path, line)
		}
		if freq < int64(minFrequency) {
			continue
		}
		if maxNumTerms > 0 && len(m.data) >= maxNumTerms {
			break
		}
		if _, exists := m.index[term]; exists {
			return nil, fmt.Errorf("term map %s: duplicate term %q", path, term)
		}
		id := len(m.data)
		m.index[term] = id
		m.data = append(m.data, termData{term, freq})
	}
	return m, scanner.Err()
}
