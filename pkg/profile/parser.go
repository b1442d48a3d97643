package profile

import (
	"strconv"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"
)

// Parser converts a raw sample log into an ordered sequence of samples.
//
// The expected line shape is "frame1;frame2;...;frameN <count>" with frames
// root-to-leaf and count a positive integer. Parsing is deliberately lenient:
// lines that do not match degrade the profile instead of aborting the
// caller, so they are dropped without error.
//
// Parse results are memoized per raw text. The cache is keyed by the xxh3
// hash of the input with a stored-text equality check on hit, so a repeated
// export of the same session reuses the parsed sequence.
type Parser struct {
	mu    sync.Mutex
	cache map[uint64]parseEntry
}

type parseEntry struct {
	raw     string
	samples []Sample
}

// NewParser returns a parser with an empty memo cache.
func NewParser() *Parser {
	return &Parser{cache: make(map[uint64]parseEntry)}
}

// Parse returns the samples encoded in raw, in line order. Repeated calls
// with the same text return the cached sequence. Callers must treat the
// returned slice as read-only.
func (p *Parser) Parse(raw string) []Sample {
	key := xxh3.HashString(raw)

	p.mu.Lock()
	if e, ok := p.cache[key]; ok && e.raw == raw {
		p.mu.Unlock()
		return e.samples
	}
	p.mu.Unlock()

	samples := parseRaw(raw)

	p.mu.Lock()
	p.cache[key] = parseEntry{raw: raw, samples: samples}
	p.mu.Unlock()

	return samples
}

func parseRaw(raw string) []Sample {
	var samples []Sample
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		s, ok := parseLine(line)
		if !ok {
			continue
		}
		samples = append(samples, s)
	}
	return samples
}

// parseLine splits a line on its last whitespace-delimited field, which must
// be a positive integer count; everything before it is the stack text.
func parseLine(line string) (Sample, bool) {
	idx := strings.LastIndexByte(line, ' ')
	if idx <= 0 || idx == len(line)-1 {
		return Sample{}, false
	}

	count, err := strconv.ParseInt(line[idx+1:], 10, 64)
	if err != nil || count <= 0 {
		return Sample{}, false
	}

	stack := strings.TrimSpace(line[:idx])
	if stack == "" {
		return Sample{}, false
	}

	return Sample{Frames: strings.Split(stack, StackDelimiter), Count: count}, true
}
