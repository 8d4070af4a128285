package api

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/campusqa/campusqa-cli/internal/domain"
)

// MetaSentinel prefixes the single metadata line of a streamed answer. The
// remainder of the line, with no separator, is the JSON metadata record.
const MetaSentinel = "__META__"

// StreamDecoder incrementally parses a streamed answer body into ordered
// content fragments plus at most one metadata record.
//
// Two kinds of partial input are carried across reads: an incomplete
// trailing UTF-8 sequence, and a trailing partial segment that could still
// turn out to be the sentinel line. Ordinary prose without a newline is
// flushed per read so display stays incremental; only a possible sentinel is
// held back. Segments are split on '\n' and the separator is not reinserted,
// so multi-line answers lose their internal line breaks on concatenation —
// that matches the wire consumers this service has always had.
type StreamDecoder struct {
	r        io.Reader
	buf      []byte
	tail     []byte // incomplete trailing UTF-8 sequence
	partial  string // held-over possible sentinel segment
	queue    []domain.StreamFrame
	metaSeen bool
	eof      bool
}

func NewStreamDecoder(r io.Reader) *StreamDecoder {
	return &StreamDecoder{r: r, buf: make([]byte, 4096)}
}

// Next returns the next frame, or io.EOF once the transport has completed
// and all buffered frames are drained.
func (d *StreamDecoder) Next() (domain.StreamFrame, error) {
	for {
		if len(d.queue) > 0 {
			frame := d.queue[0]
			d.queue = d.queue[1:]
			return frame, nil
		}
		if d.eof {
			return domain.StreamFrame{}, io.EOF
		}

		n, err := d.r.Read(d.buf)
		if n > 0 {
			d.ingest(d.buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				d.eof = true
				d.flush()
				continue
			}
			return domain.StreamFrame{}, err
		}
	}
}

func (d *StreamDecoder) ingest(chunk []byte) {
	joined := append(d.tail, chunk...)
	complete, tail := splitCompleteRunes(joined)
	d.tail = append([]byte(nil), tail...)

	text := d.partial + string(complete)
	d.partial = ""
	if text == "" {
		return
	}

	segments := strings.Split(text, "\n")
	last := segments[len(segments)-1]
	for _, segment := range segments[:len(segments)-1] {
		d.emit(segment)
	}

	if last == "" {
		return
	}
	if maybeSentinel(last) {
		d.partial = last
		return
	}
	d.emit(last)
}

// flush drains the held-over state once the transport has completed.
func (d *StreamDecoder) flush() {
	if len(d.tail) > 0 {
		d.partial += string(d.tail)
		d.tail = nil
	}
	if d.partial != "" {
		d.emit(d.partial)
		d.partial = ""
	}
}

func (d *StreamDecoder) emit(segment string) {
	if segment == "" {
		return
	}

	if strings.HasPrefix(segment, MetaSentinel) {
		if d.metaSeen {
			return
		}
		meta, err := parseMetaRecord(segment[len(MetaSentinel):])
		if err != nil {
			// Malformed metadata degrades the stream to content-only
			// rather than failing the turn.
			return
		}
		d.metaSeen = true
		d.queue = append(d.queue, domain.StreamFrame{Meta: meta})
		return
	}

	d.queue = append(d.queue, domain.StreamFrame{Content: segment})
}

func parseMetaRecord(raw string) (*domain.QueryMeta, error) {
	var decoded struct {
		Sources   []sourceSchema `json:"sources"`
		LatencyMS *float64       `json:"latency_ms"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, err
	}

	return &domain.QueryMeta{
		Sources:   fromSourceSchemas(decoded.Sources),
		LatencyMS: decoded.LatencyMS,
	}, nil
}

// maybeSentinel reports whether a trailing partial segment could still
// complete into a sentinel line on the next read.
func maybeSentinel(segment string) bool {
	if len(segment) < len(MetaSentinel) {
		return strings.HasPrefix(MetaSentinel, segment)
	}
	return strings.HasPrefix(segment, MetaSentinel)
}

// splitCompleteRunes cuts b so that complete holds only whole UTF-8
// sequences; an incomplete trailing sequence is returned as tail so it can
// be decoded once the rest of its bytes arrive.
func splitCompleteRunes(b []byte) (complete, tail []byte) {
	for i := len(b) - 1; i >= 0 && len(b)-i < utf8.UTFMax; i-- {
		c := b[i]
		if c < utf8.RuneSelf {
			break
		}
		if utf8.RuneStart(c) {
			if !utf8.FullRune(b[i:]) {
				return b[:i], b[i:]
			}
			break
		}
	}
	return b, nil
}
