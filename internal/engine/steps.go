package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thox33/sync-tool/internal/config"
	"github.com/Thox33/sync-tool/internal/provider"
	"github.com/Thox33/sync-tool/internal/schema"
)

// Step names used in logs, metrics and step errors.
const (
	StepCreate  = "create"
	StepFetch   = "fetch"
	StepCompare = "compare"
	StepUpdate  = "update"
)

// stepOutcome is what a step reports back to the dispatcher. Steps run
// concurrently and never touch the report directly.
type stepOutcome struct {
	name      string
	err       error
	elapsed   time.Duration
	created   bool
	planned   bool
	fetched   bool
	updated   bool
	diff      []string
	direction string
}

// step executes the step for the item's current status. A failing or
// panicking step fails the item and nothing else.
func (c *Controller) step(ctx context.Context, it *Item, dryRun bool) (out stepOutcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out.err = fmt.Errorf("panic: %v", r)
		}
		out.elapsed = time.Since(start)
		it.Steps++
		if out.err != nil {
			it.Fail(&StepError{Step: out.name, Item: it.Key, Err: out.err})
		}
	}()

	switch it.Status {
	case StatusNew:
		out.name = StepCreate
		out.err = c.create(ctx, it, dryRun, &out)
	case StatusShouldFetch:
		out.name = StepFetch
		out.err = c.fetch(ctx, it, &out)
	case StatusFetched:
		out.name = StepCompare
		c.compare(it, &out)
	case StatusNeedsUpdate:
		out.name = StepUpdate
		out.err = c.update(ctx, it, dryRun, &out)
	default:
		out.name = it.Status.String()
		out.err = fmt.Errorf("no step for status %s", it.Status)
	}
	return out
}

// create writes the source record to the destination, then links the
// source back to the new record.
func (c *Controller) create(ctx context.Context, it *Item, dryRun bool, out *stepOutcome) error {
	src, dst := c.source, c.destination

	srcURL, err := src.provider.ItemURL(ctx, it.Key)
	if err != nil {
		return fmt.Errorf("source item url: %w", err)
	}
	data := it.Source.Clone()
	delete(data, c.typ.Options().IDField)
	data[c.markerField] = schema.NewSyncStatus(schema.LinkEntry{ID: it.Key, URL: srcURL})

	newID, err := dst.provider.CreateData(ctx, dst.spec.Type, dst.query, dst.spec.ToRaw(data), dryRun)
	if err != nil {
		return fmt.Errorf("create destination record: %w", err)
	}
	if newID == "" {
		if !dryRun {
			return errors.New("destination returned no id for the created record")
		}
		it.Planned = true
		it.Status = StatusSynced
		out.planned = true
		return nil
	}
	out.created = true

	dstURL, err := dst.provider.ItemURL(ctx, newID)
	if err != nil {
		return fmt.Errorf("destination item url: %w", err)
	}
	marker := schema.NewSyncStatus(schema.LinkEntry{ID: newID, URL: dstURL})
	patch := src.spec.ToRaw(schema.Record{c.markerField: marker})
	if err := src.provider.PatchData(ctx, src.spec.Type, src.query, it.Key, patch, dryRun); err != nil {
		return fmt.Errorf("link source record to %s: %w", newID, err)
	}

	source := it.Source.Clone()
	source[c.markerField] = marker
	it.Source = source
	it.Status = StatusShouldFetch
	return nil
}

// fetch loads the counterpart linked by the source marker.
func (c *Controller) fetch(ctx context.Context, it *Item, out *stepOutcome) error {
	dst := c.destination
	id, ok := it.SourceSyncID()
	if !ok {
		return errors.New("source record has no linked counterpart")
	}
	raw, found, err := dst.provider.GetDataByID(ctx, dst.spec.Type, id)
	if err != nil {
		return fmt.Errorf("get destination record %s: %w", id, err)
	}
	if !found {
		return fmt.Errorf("destination %s %s: %w", dst.spec.Type, id, provider.ErrNotFound)
	}
	rec, err := c.typ.Validate(dst.spec.ToCanonical(raw))
	if err != nil {
		return fmt.Errorf("destination record %s: %w", id, err)
	}
	it.AddDestination(rec)
	out.fetched = true
	return nil
}

func (c *Controller) compare(it *Item, out *stepOutcome) {
	out.diff = differingFields(c.typ.Options().ComparableFields, it.Source, it.Destination)
	if len(out.diff) > 0 {
		it.Status = StatusNeedsUpdate
		return
	}
	it.Status = StatusSynced
}

// update pushes the syncable fields. In single mode the source always
// wins. In both mode the side with the strictly newer modification time
// wins; ties go to the destination.
func (c *Controller) update(ctx context.Context, it *Item, dryRun bool, out *stepOutcome) error {
	dstID, ok := it.SourceSyncID()
	if !ok {
		return errors.New("source record has no linked counterpart")
	}

	switch c.rule.Mode {
	case config.ModeBoth:
		field := c.typ.Options().ModifiedField
		srcMod, srcOK := it.Source[field].(time.Time)
		dstMod, dstOK := it.Destination[field].(time.Time)
		if !srcOK || !dstOK {
			return fmt.Errorf("mode %s needs %s on both records", config.ModeBoth, field)
		}
		if srcMod.After(dstMod) {
			out.direction = "source->destination"
			if err := c.push(ctx, it.Source, c.destination, dstID, dryRun); err != nil {
				return err
			}
		} else {
			out.direction = "destination->source"
			if err := c.push(ctx, it.Destination, c.source, it.Key, dryRun); err != nil {
				return err
			}
		}
	default:
		out.direction = "source->destination"
		if err := c.push(ctx, it.Source, c.destination, dstID, dryRun); err != nil {
			return err
		}
	}

	it.Status = StatusSynced
	out.updated = true
	return nil
}

// push patches the non-nil syncable fields of from into the record id of
// the target endpoint.
func (c *Controller) push(ctx context.Context, from schema.Record, to endpoint, id string, dryRun bool) error {
	data := schema.Record{}
	for _, f := range c.typ.Options().SyncableFields {
		if v, ok := from[f]; ok && v != nil {
			data[f] = v
		}
	}
	if err := to.provider.PatchData(ctx, to.spec.Type, to.query, id, to.spec.ToRaw(data), dryRun); err != nil {
		return fmt.Errorf("patch %s record %s: %w", to.side, id, err)
	}
	return nil
}
