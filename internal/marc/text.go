package marc

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/bibform/internal/ir"
)

// subfieldMarker separates subfields in the text form.
const subfieldMarker = "$$"

// TextPreparer reads the line based text form. Records are separated by
// blank lines.
type TextPreparer struct{}

func (TextPreparer) Name() string         { return "textmarc" }
func (TextPreparer) MasterFormat() string { return MasterFormat }

func (TextPreparer) SplitBlob(raw []byte) ([][]byte, error) {
	var out [][]byte
	var cur bytes.Buffer
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, bytes.Clone(cur.Bytes()))
			cur.Reset()
		}
	}
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			flush()
			continue
		}
		cur.Write(line)
		cur.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "textmarc")
	}
	flush()
	return out, nil
}

// Prepare parses one record. Each line is "TAG value" for control fields
// or "TAGi1i2 $$avalue$$bvalue" for data fields.
func (TextPreparer) Prepare(raw []byte) (*ir.Intermediate, error) {
	rec := ir.NewIntermediate(MasterFormat)
	sc := bufio.NewScanner(bytes.NewReader(raw))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			if rec.Len() > 0 {
				return nil, errors.Newf("textmarc: line %d: blank line inside a record, split it first", lineNo)
			}
			continue
		}
		if err := parseLine(rec, line); err != nil {
			return nil, errors.Wrapf(err, "textmarc: line %d", lineNo)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "textmarc")
	}
	if rec.Len() == 0 {
		return nil, errors.New("textmarc: empty record")
	}
	return rec, nil
}

func parseLine(rec *ir.Intermediate, line string) error {
	head, body, _ := strings.Cut(line, " ")
	if len(head) < 3 {
		return errors.Newf("malformed tag %q", head)
	}
	tag := head[:3]
	if len(head) == 3 {
		if IsControlTag(tag) {
			rec.Add(tag, ir.IRString(body))
			return nil
		}
		head += "__"
	}
	if len(head) != 5 {
		return errors.Newf("malformed tag %q, want tag and two indicators", head)
	}

	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, subfieldMarker) {
		return errors.Newf("field %s: subfields must start with %s", head, subfieldMarker)
	}
	subfields := newSubfieldSet()
	for _, part := range strings.Split(body[len(subfieldMarker):], subfieldMarker) {
		if part == "" {
			return errors.Newf("field %s: empty subfield", head)
		}
		subfields.add(part[:1], part[1:])
	}
	addField(rec, tag, head[3:4], head[4:5], subfields, "", false)
	return nil
}
