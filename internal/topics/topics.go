// Package topics reads TREC-COVID topic files.
package topics

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrNotFound indicates a topic number absent from the collection.
	ErrNotFound = errors.New("topic not found")

	// ErrDuplicate indicates two topics with the same number.
	ErrDuplicate = errors.New("duplicate topic number")
)

// Topic is one information need.
type Topic struct {
	Number    string `xml:"number,attr"`
	Query     string `xml:"query"`
	Question  string `xml:"question"`
	Narrative string `xml:"narrative"`
}

// Text joins the query, question and narrative with single spaces. Empty
// fields are left out.
func (t Topic) Text() string {
	parts := make([]string, 0, 3)
	for _, f := range []string{t.Query, t.Question, t.Narrative} {
		if f = strings.Join(strings.Fields(f), " "); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " ")
}

func (t Topic) String() string {
	return t.Number + " " + strings.TrimSpace(t.Query)
}

// Collection holds topics in file order.
type Collection struct {
	topics []Topic
	index  map[string]int
}

type topicsFile struct {
	XMLName xml.Name `xml:"topics"`
	Topics  []Topic  `xml:"topic"`
}

// Load reads a topic file from path.
func Load(path string) (*Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening topics: %w", err)
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes topic XML from r.
func Parse(r io.Reader) (*Collection, error) {
	var file topicsFile
	if err := xml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decoding topics: %w", err)
	}
	return New(file.Topics...)
}

// New builds a Collection from topics. Numbers must be non-empty and
// unique.
func New(topics ...Topic) (*Collection, error) {
	c := &Collection{
		topics: make([]Topic, 0, len(topics)),
		index:  make(map[string]int, len(topics)),
	}
	for i, t := range topics {
		t.Number = strings.TrimSpace(t.Number)
		if t.Number == "" {
			return nil, fmt.Errorf("topic %d has no number", i+1)
		}
		if _, ok := c.index[t.Number]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, t.Number)
		}
		c.index[t.Number] = len(c.topics)
		c.topics = append(c.topics, t)
	}
	return c, nil
}

// Len returns the number of topics.
func (c *Collection) Len() int { return len(c.topics) }

// All returns the topics in file order.
func (c *Collection) All() []Topic {
	out := make([]Topic, len(c.topics))
	copy(out, c.topics)
	return out
}

// Get returns the topic with the given number.
func (c *Collection) Get(number string) (Topic, error) {
	i, ok := c.index[number]
	if !ok {
		return Topic{}, fmt.Errorf("%w: %s", ErrNotFound, number)
	}
	return c.topics[i], nil
}
