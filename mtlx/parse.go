package mtlx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/zero-day-ai/mxgraph/mxerr"
)

// structural lists the MaterialX element tags that are not node records.
var structural = map[string]bool{
	"nodedef":        true,
	"typedef":        true,
	"implementation": true,
	"nodegraph":      true,
	"look":           true,
	"collection":     true,
	"geominfo":       true,
	"propertyset":    true,
	"variantset":     true,
	"backdrop":       true,
	"input":          true,
	"output":         true,
	"parameter":      true,
	"token":          true,
	"unittypedef":    true,
	"targetdef":      true,
	"attributedef":   true,
}

type xmlPort struct {
	XMLName   xml.Name
	Name      string  `xml:"name,attr"`
	Type      string  `xml:"type,attr"`
	Value     *string `xml:"value,attr"`
	UIMin     *string `xml:"uimin,attr"`
	UIMax     *string `xml:"uimax,attr"`
	UISoftMin *string `xml:"uisoftmin,attr"`
	UISoftMax *string `xml:"uisoftmax,attr"`
	UIName    string  `xml:"uiname,attr"`
	UIFolder  string  `xml:"uifolder,attr"`
	Doc       string  `xml:"doc,attr"`
}

type xmlNodeDef struct {
	Name      string    `xml:"name,attr"`
	Node      string    `xml:"node,attr"`
	Type      string    `xml:"type,attr"`
	NodeGroup string    `xml:"nodegroup,attr"`
	Version   string    `xml:"version,attr"`
	Doc       string    `xml:"doc,attr"`
	Ports     []xmlPort `xml:",any"`
}

type xmlElement struct {
	XMLName  xml.Name
	Attrs    []xml.Attr   `xml:",any,attr"`
	Children []xmlElement `xml:",any"`
}

func (e xmlElement) attr(name string) *string {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			v := a.Value
			return &v
		}
	}
	return nil
}

func (e xmlElement) attrString(name string) string {
	if v := e.attr(name); v != nil {
		return *v
	}
	return ""
}

// ReadDocument reads r fully and parses it. The returned error is only
// non-nil when r cannot be read; parse problems are recorded in
// Document.Diagnostics.
func ReadDocument(name string, r io.Reader) (*Document, []error, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	doc, diags := Parse(name, data)
	return doc, diags, nil
}

// Parse parses a MaterialX document held in data. It always returns a
// document, possibly partial. Each skipped record, and an XML syntax error
// that stops the parse, is reported as an mxerr.CodeSchemaParse diagnostic.
func Parse(name string, data []byte) (*Document, []error) {
	doc := &Document{Name: name}
	var diags mxerr.Diagnostics

	dec := xml.NewDecoder(bytes.NewReader(data))
	depth := 0

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			diags.Add(mxerr.New("load", mxerr.CodeSchemaParse, name, "malformed XML").WithCause(err))
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if t.Name.Local != "materialx" {
					diags.Add(mxerr.Newf("load", mxerr.CodeSchemaParse, name,
						"root element is <%s>, expected <materialx>", t.Name.Local))
					return doc, diags.Errors()
				}
				for _, a := range t.Attr {
					if a.Name.Local == "version" {
						doc.Version = a.Value
					}
				}
				depth++
				continue
			}

			if err := decodeTopLevel(dec, t, doc, &diags); err != nil {
				diags.Add(mxerr.New("load", mxerr.CodeSchemaParse, name, "malformed XML").WithCause(err))
				return doc, diags.Errors()
			}

		case xml.EndElement:
			depth--
		}
	}

	return doc, diags.Errors()
}

func decodeTopLevel(dec *xml.Decoder, start xml.StartElement, doc *Document, diags *mxerr.Diagnostics) error {
	switch start.Name.Local {
	case "nodedef":
		var raw xmlNodeDef
		if err := dec.DecodeElement(&raw, &start); err != nil {
			return err
		}
		def, err := buildNodeDef(raw, doc.Name)
		if err != nil {
			diags.Add(err)
			return nil
		}
		doc.NodeDefs = append(doc.NodeDefs, def)

	case "nodegraph":
		var raw xmlElement
		if err := dec.DecodeElement(&raw, &start); err != nil {
			return err
		}
		graph := raw.attrString("name")
		for _, child := range raw.Children {
			if structural[child.XMLName.Local] {
				continue
			}
			addNode(doc, child, graph, diags)
		}

	default:
		if structural[start.Name.Local] {
			return dec.Skip()
		}
		var raw xmlElement
		if err := dec.DecodeElement(&raw, &start); err != nil {
			return err
		}
		addNode(doc, raw, "", diags)
	}
	return nil
}

func buildNodeDef(raw xmlNodeDef, source string) (*NodeDef, error) {
	subject := raw.Name
	if subject == "" {
		subject = source
	}
	if raw.Name == "" {
		return nil, mxerr.New("load", mxerr.CodeSchemaParse, subject, "nodedef has no name attribute")
	}
	if raw.Node == "" {
		return nil, mxerr.New("load", mxerr.CodeSchemaParse, subject, "nodedef has no node attribute")
	}

	def := &NodeDef{
		Name:       raw.Name,
		NodeString: raw.Node,
		Type:       raw.Type,
		NodeGroup:  raw.NodeGroup,
		Version:    raw.Version,
		Doc:        raw.Doc,
		Source:     source,
	}

	seen := make(map[string]bool, len(raw.Ports))
	for _, rp := range raw.Ports {
		var kind PortKind
		switch rp.XMLName.Local {
		case "parameter":
			kind = PortParameter
		case "input":
			kind = PortInput
		case "output":
			kind = PortOutput
		default:
			continue
		}

		if rp.Name == "" {
			return nil, mxerr.Newf("load", mxerr.CodeSchemaParse, subject, "%s without name attribute", kind)
		}
		if rp.Type == "" {
			return nil, mxerr.Newf("load", mxerr.CodeSchemaParse, subject, "%s %q has no type attribute", kind, rp.Name)
		}
		if seen[rp.Name] {
			return nil, mxerr.Newf("load", mxerr.CodeSchemaParse, subject, "duplicate port name %q", rp.Name)
		}
		seen[rp.Name] = true

		p := Port{
			Kind:      kind,
			Name:      rp.Name,
			Type:      rp.Type,
			Value:     rp.Value,
			UIMin:     rp.UIMin,
			UIMax:     rp.UIMax,
			UISoftMin: rp.UISoftMin,
			UISoftMax: rp.UISoftMax,
			UIName:    rp.UIName,
			UIFolder:  rp.UIFolder,
			Doc:       rp.Doc,
		}
		switch kind {
		case PortParameter:
			def.Parameters = append(def.Parameters, p)
		case PortInput:
			def.Inputs = append(def.Inputs, p)
		case PortOutput:
			def.Outputs = append(def.Outputs, p)
		}
	}

	// single-output definitions declare the output through the type attribute
	if len(def.Outputs) == 0 && def.Type != "" && def.Type != "multioutput" {
		def.Outputs = append(def.Outputs, Port{Kind: PortOutput, Name: "out", Type: def.Type})
	}

	return def, nil
}

func addNode(doc *Document, raw xmlElement, graph string, diags *mxerr.Diagnostics) {
	n := Node{
		Category: raw.XMLName.Local,
		Name:     raw.attrString("name"),
		Type:     raw.attrString("type"),
		Graph:    graph,
	}
	if n.Name == "" {
		diags.Add(mxerr.Newf("load", mxerr.CodeSchemaParse, doc.Name, "<%s> node has no name attribute", n.Category))
		return
	}

	for _, child := range raw.Children {
		if child.XMLName.Local != "input" && child.XMLName.Local != "parameter" {
			continue
		}
		n.Inputs = append(n.Inputs, NodeInput{
			Name:     child.attrString("name"),
			Type:     child.attrString("type"),
			Value:    child.attr("value"),
			NodeName: child.attrString("nodename"),
			Output:   child.attrString("output"),
		})
	}

	doc.Nodes = append(doc.Nodes, n)
}
