package syncer

import (
	"fmt"
	"strconv"
	"strings"

	"dexIngest/internal/config"
	"dexIngest/internal/model"
)

// Pagination is how successive pages of an entity type are requested.
type Pagination int

const (
	// Offset pages with first/skip ordered by id. No cursor field moves.
	Offset Pagination = iota
	// KeysetID pages with id_gt on the last seen id.
	KeysetID
	// KeysetNumeric pages with <marker>_gte on a numeric marker.
	KeysetNumeric
)

func (p Pagination) String() string {
	switch p {
	case Offset:
		return "offset"
	case KeysetID:
		return "keyset_id"
	case KeysetNumeric:
		return "keyset_numeric"
	default:
		return "unknown"
	}
}

// Marker selects which cursor field a numeric marker advances.
type Marker int

const (
	MarkerTimestamp Marker = iota
	MarkerBlock
)

// Endpoint selects which query endpoint of a chain serves an entity type.
type Endpoint int

const (
	EndpointV2 Endpoint = iota
	EndpointV2Tokens
)

// Embedded extracts a side row from a nested object, e.g. the transaction of a swap.
type Embedded struct {
	Path   string
	Table  string
	Fields []Field
}

// Descriptor declares one mirrored entity type.
type Descriptor struct {
	// Name is the remote collection and doubles as the cursor data type.
	Name       string
	Table      string
	Pagination Pagination
	// MarkerField and MarkerType apply to KeysetNumeric only. MarkerType is the
	// GraphQL scalar of the marker argument, "BigInt" or "Int".
	MarkerField string
	MarkerType  string
	Marker      Marker
	Endpoint    Endpoint
	Fields      []Field
	Embedded    []Embedded
}

func (d Descriptor) endpoint(chain config.ChainConfig) string {
	if d.Endpoint == EndpointV2Tokens {
		return chain.TokensEndpoint()
	}
	return chain.QueryEndpoint()
}

// TableDef returns the mirrored table definition for the descriptor.
func (d Descriptor) TableDef() model.Table {
	return tableOf(d.Table, d.Fields)
}

func tableOf(name string, fields []Field) model.Table {
	cols := make([]model.Column, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, model.Column{Name: f.Column, Type: f.Kind.columnType()})
	}
	return model.Table{Name: name, Columns: cols}
}

// Selection renders the GraphQL field selection for one entity.
func (d Descriptor) Selection() string {
	paths := []string{"id"}
	if d.Pagination == KeysetNumeric {
		paths = append(paths, d.MarkerField)
	}
	for _, f := range d.Fields {
		paths = append(paths, f.Path)
	}
	for _, e := range d.Embedded {
		paths = append(paths, e.Path+".id")
		for _, f := range e.Fields {
			paths = append(paths, e.Path+"."+f.Path)
		}
	}
	return renderSelection(paths)
}

type selection struct {
	name     string
	children []*selection
}

func (s *selection) child(name string) *selection {
	for _, c := range s.children {
		if c.name == name {
			return c
		}
	}
	c := &selection{name: name}
	s.children = append(s.children, c)
	return c
}

func (s *selection) render(b *strings.Builder) {
	for i, c := range s.children {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(c.name)
		if len(c.children) > 0 {
			b.WriteString(" { ")
			c.render(b)
			b.WriteString(" }")
		}
	}
}

func renderSelection(paths []string) string {
	root := &selection{}
	for _, p := range paths {
		node := root
		for _, part := range strings.Split(p, ".") {
			node = node.child(part)
		}
	}
	var b strings.Builder
	root.render(&b)
	return b.String()
}

// query renders the page request for the given pager state.
func (d Descriptor) query(first int, p *pager) (string, map[string]any) {
	sel := d.Selection()
	switch d.Pagination {
	case KeysetID:
		q := fmt.Sprintf(
			"query Page($first: Int!, $lastId: ID!) { %s(first: $first, orderBy: id, orderDirection: asc, where: { id_gt: $lastId }) { %s } }",
			d.Name, sel)
		return q, map[string]any{"first": first, "lastId": p.lastID}
	case KeysetNumeric:
		q := fmt.Sprintf(
			"query Page($first: Int!, $skip: Int!, $since: %s!) { %s(first: $first, skip: $skip, orderBy: %s, orderDirection: asc, where: { %s_gte: $since }) { %s } }",
			d.MarkerType, d.Name, d.MarkerField, d.MarkerField, sel)
		var since any = p.since
		if d.MarkerType == "BigInt" {
			since = strconv.FormatInt(p.since, 10)
		}
		return q, map[string]any{"first": first, "skip": p.skip, "since": since}
	default:
		q := fmt.Sprintf(
			"query Page($first: Int!, $skip: Int!) { %s(first: $first, skip: $skip, orderBy: id, orderDirection: asc) { %s } }",
			d.Name, sel)
		return q, map[string]any{"first": first, "skip": p.skip}
	}
}

// mapNode converts one remote entity into its row and any embedded side rows.
func (d Descriptor) mapNode(n Node) ([]model.Row, error) {
	id, ok := n.String("id")
	if !ok || id == "" {
		return nil, fmt.Errorf("missing id")
	}
	values, err := fieldValues(n, d.Fields)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", d.Name, id, err)
	}
	rows := []model.Row{{Table: d.Table, ID: strings.ToLower(id), Values: values}}

	for _, e := range d.Embedded {
		obj, ok := n.Object(e.Path)
		if !ok {
			continue
		}
		eid, ok := obj.String("id")
		if !ok || eid == "" {
			continue
		}
		ev, err := fieldValues(obj, e.Fields)
		if err != nil {
			return nil, fmt.Errorf("%s %s %s: %w", d.Name, id, e.Path, err)
		}
		rows = append(rows, model.Row{Table: e.Table, ID: strings.ToLower(eid), Values: ev})
	}
	return rows, nil
}

func fieldValues(n Node, fields []Field) (map[string]any, error) {
	values := make(map[string]any, len(fields))
	for _, f := range fields {
		v, err := f.value(n)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Path, err)
		}
		values[f.Column] = v
	}
	return values, nil
}
