package processors

import (
	"context"
	"fmt"

	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/ingestion"
)

// TableRoute sets the destination table of a batch from a payload field.
//
// The field value is looked up in Tables; with no Tables the value itself is
// the table name. Payloads without the field, or with an unmapped value, keep
// the original table. All payloads of a batch must route to the same table.
type TableRoute struct {
	Field  string
	Tables map[string]string
}

var _ ingestion.PreProcessor = (*TableRoute)(nil)

// NewTableRoute routes on field, mapping values through tables.
func NewTableRoute(field string, tables map[string]string) (*TableRoute, error) {
	if field == "" {
		return nil, ErrRouteField
	}
	return &TableRoute{Field: field, Tables: tables}, nil
}

func (r *TableRoute) PreProcess(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata) ([]core.Payload, core.Metadata, error) {
	var table string
	for i, p := range payloads {
		t, ok := r.tableFor(p)
		if !ok {
			continue
		}
		if table != "" && t != table {
			return nil, md, core.UserError(fmt.Errorf("%w: payload %d wants %q, batch routed to %q", ErrMixedRoute, i, t, table))
		}
		table = t
	}
	if table == "" || table == dest.Table {
		return payloads, md, nil
	}

	if md.Override == nil {
		md.Override = &core.Override{}
	}
	md.Override.Table = &table
	return payloads, md, nil
}

func (r *TableRoute) tableFor(p core.Payload) (string, bool) {
	v, ok := p[r.Field]
	if !ok || v == nil {
		return "", false
	}
	key := fmt.Sprint(v)
	if r.Tables == nil {
		return key, key != ""
	}
	t, ok := r.Tables[key]
	return t, ok && t != ""
}
