// Package xmlgui extracts GUI widget records from the menu level XML.
//
// The level file is mostly a flat list of objects:
//
//	<Object type="cGUIButtonWidget" id="20002125">
//	  <Attribute name="mName" type="cFxString8"><Item>Main_Save</Item></Attribute>
//	  <Pointer name="mpEventHandler" type="cGUIEventHandler"><Item>200021</Item></Pointer>
//	</Object>
//
// An object's attributes and pointers are its direct children. Recognized
// objects nested at any depth inside another object are yielded after it.
// Only attribute extraction is done here; the schema is not validated.
package xmlgui

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/logging"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/model"
)

const eventHandlerPointer = "mpEventHandler"

// Config selects which XML nodes are widgets and where their names live
type Config struct {
	Element  string   // element name of object nodes, usually "Object"
	Types    []string // recognized values of the type attribute
	NameKeys []string // XML attributes or <Attribute name=...> children holding the name, in priority order
}

// DefaultConfig recognizes button widgets by their mName attribute
func DefaultConfig() Config {
	return Config{
		Element:  "Object",
		Types:    []string{string(model.WidgetButton)},
		NameKeys: []string{"mName", "name", "Name"},
	}
}

// Extractor turns level XML into model.Object records
type Extractor struct {
	cfg   Config
	types map[string]bool
}

// NewExtractor creates an extractor for the given configuration
func NewExtractor(cfg Config) *Extractor {
	types := make(map[string]bool, len(cfg.Types))
	for _, t := range cfg.Types {
		types[t] = true
		if !model.WidgetKind(t).Known() {
			logging.Debug("extracting a type that is not a GUI widget kind", "type", t)
		}
	}
	return &Extractor{cfg: cfg, types: types}
}

// Result is a fully drained extraction
type Result struct {
	Objects []model.Object
	Skipped int // recognized nodes without a name
}

type objectXML struct {
	Type       string
	ID         string
	Line       int
	Attrs      []xml.Attr
	Attributes []attributeXML
	Pointers   []attributeXML
}

type attributeXML struct {
	Name  string   `xml:"name,attr"`
	Type  string   `xml:"type,attr"`
	Items []string `xml:"Item"`
}

// Stream is a lazy walk over one XML document
type Stream struct {
	e       *Extractor
	file    string
	r       io.Reader
	skipped int
}

// Stream prepares a lazy walk over r. file names the source in errors.
func (e *Extractor) Stream(file string, r io.Reader) *Stream {
	return &Stream{e: e, file: file, r: r}
}

// Skipped returns how many recognized nodes were skipped for lacking a name so far
func (s *Stream) Skipped() int {
	return s.skipped
}

// All yields one Object per recognized, named node in document order.
// A parse failure is yielded once as a *model.InputError and ends the sequence.
func (s *Stream) All() iter.Seq2[model.Object, error] {
	return func(yield func(model.Object, error) bool) {
		dec := xml.NewDecoder(s.r)
		dec.CharsetReader = charset.NewReaderLabel

		sawRoot := false
		for {
			tok, err := dec.Token()
			if errors.Is(err, io.EOF) {
				if !sawRoot {
					yield(model.Object{}, s.inputError(dec, errors.New("no root element")))
				}
				return
			}
			if err != nil {
				yield(model.Object{}, s.inputError(dec, err))
				return
			}

			start, ok := tok.(xml.StartElement)
			if !ok {
				continue
			}
			sawRoot = true
			if start.Name.Local != s.e.cfg.Element {
				continue
			}
			if !s.e.recognized(start) {
				continue
			}

			nodes, err := s.readObject(dec, start)
			if err != nil {
				yield(model.Object{}, s.inputError(dec, err))
				return
			}
			for i := range nodes {
				obj, ok := s.e.buildObject(&nodes[i])
				if !ok {
					s.skipped++
					logging.Debug("skipping widget without name", "type", nodes[i].Type, "line", nodes[i].Line)
					continue
				}
				if !yield(obj, nil) {
					return
				}
			}
		}
	}
}

func (e *Extractor) recognized(start xml.StartElement) bool {
	return start.Name.Local == e.cfg.Element && e.types[attrValue(start.Attr, "type")]
}

// readObject consumes a recognized object through its end element. The
// object comes first in the result, followed by the recognized objects
// nested inside it in document order.
func (s *Stream) readObject(dec *xml.Decoder, start xml.StartElement) ([]objectXML, error) {
	line, _ := dec.InputPos()
	nodes := []objectXML{{
		Type:  attrValue(start.Attr, "type"),
		ID:    attrValue(start.Attr, "id"),
		Line:  line,
		Attrs: start.Attr,
	}}

	depth := 0 // inside unrecognized children
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.EndElement:
			if depth == 0 {
				return nodes, nil
			}
			depth--
		case xml.StartElement:
			switch {
			case s.e.recognized(t):
				nested, err := s.readObject(dec, t)
				if err != nil {
					return nil, err
				}
				nodes = append(nodes, nested...)
			case depth == 0 && (t.Name.Local == "Attribute" || t.Name.Local == "Pointer"):
				var a attributeXML
				if err := dec.DecodeElement(&a, &t); err != nil {
					return nil, err
				}
				if t.Name.Local == "Attribute" {
					nodes[0].Attributes = append(nodes[0].Attributes, a)
				} else {
					nodes[0].Pointers = append(nodes[0].Pointers, a)
				}
			default:
				depth++
			}
		}
	}
}

func (e *Extractor) buildObject(node *objectXML) (model.Object, bool) {
	attrs := make(model.Attributes, len(node.Attributes))
	for _, a := range node.Attributes {
		if a.Name == "" {
			continue
		}
		attrs[a.Name] = joinItems(a.Items)
	}

	name := ""
	for _, key := range e.cfg.NameKeys {
		if v := strings.TrimSpace(attrValue(node.Attrs, key)); v != "" {
			name = v
			break
		}
		if v, ok := attrs.Get(key); ok && strings.TrimSpace(v) != "" {
			name = strings.TrimSpace(v)
			break
		}
	}
	if name == "" {
		return model.Object{}, false
	}

	var handlers []string
	for _, p := range node.Pointers {
		if p.Name != eventHandlerPointer {
			continue
		}
		for _, item := range p.Items {
			item = strings.TrimSpace(item)
			if item != "" && item != "0" {
				handlers = append(handlers, item)
			}
		}
	}

	return model.Object{
		Type:          model.WidgetKind(node.Type),
		ID:            node.ID,
		Name:          name,
		Attributes:    attrs,
		EventHandlers: handlers,
		Line:          node.Line,
	}, true
}

func (s *Stream) inputError(dec *xml.Decoder, err error) error {
	ie := &model.InputError{File: s.file, Offset: dec.InputOffset(), Err: err}
	var syntax *xml.SyntaxError
	if errors.As(err, &syntax) {
		ie.Line = syntax.Line
		ie.Err = errors.New(syntax.Msg)
	} else {
		ie.Line, ie.Column = dec.InputPos()
	}
	return ie
}

// Extract drains a stream into a Result
func (e *Extractor) Extract(file string, r io.Reader) (*Result, error) {
	stream := e.Stream(file, r)
	var objects []model.Object
	for obj, err := range stream.All() {
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return &Result{Objects: objects, Skipped: stream.Skipped()}, nil
}

// ExtractFile reads the whole file into memory and extracts it
func (e *Extractor) ExtractFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.InputError{File: path, Offset: -1, Err: err}
	}

	logger := logging.New("xmlgui")
	result, err := e.Extract(path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	logger.Info("extracted widgets", "file", path, "objects", len(result.Objects), "skipped", result.Skipped)
	return result, nil
}

func attrValue(attrs []xml.Attr, name string) string {
	for _, a := range attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func joinItems(items []string) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			parts = append(parts, item)
		}
	}
	return strings.Join(parts, ", ")
}

// String renders the config for debug logs
func (c Config) String() string {
	return fmt.Sprintf("element=%s types=%v names=%v", c.Element, c.Types, c.NameKeys)
}
