package service

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"github.com/sirupsen/logrus"

	"aspos-sync/internal/model"
	"aspos-sync/internal/repository"
	"aspos-sync/internal/upstream"
	"aspos-sync/pkg/syncerr"
)

// POS is the part of the upstream client the stages read from.
type POS interface {
	Stores(ctx context.Context, cred model.Credential) iter.Seq2[upstream.StoreRecord, error]
	WebProducts(ctx context.Context, cred model.Credential, storeID string) iter.Seq2[upstream.ProductRecord, error]
	StockInfo(ctx context.Context, cred model.Credential, asposProductID, storeID string) ([]upstream.StockRecord, error)
}

// Result is the outcome of one stage invocation.
type Result struct {
	Stage     model.TaskKind
	StoreID   string
	Processed int
	Skipped   int
	Failed    int
	Err       error // first error seen
	Duration  time.Duration
}

// OK reports whether every record of the stage succeeded.
func (r Result) OK() bool {
	return r.Err == nil && r.Failed == 0
}

// Error returns nil for a successful stage, otherwise an error summarizing it.
func (r Result) Error() error {
	switch {
	case r.Err != nil:
		return fmt.Errorf("%s stage: %w", r.Stage, r.Err)
	case r.Failed > 0:
		return fmt.Errorf("%s stage: %d records failed", r.Stage, r.Failed)
	}
	return nil
}

// MarshalJSON renders the result for the control API.
func (r Result) MarshalJSON() ([]byte, error) {
	out := struct {
		Stage      model.TaskKind `json:"stage"`
		StoreID    string         `json:"store_id,omitempty"`
		OK         bool           `json:"ok"`
		Processed  int            `json:"processed"`
		Skipped    int            `json:"skipped"`
		Failed     int            `json:"failed"`
		Error      string         `json:"error,omitempty"`
		ErrorKind  string         `json:"error_kind,omitempty"`
		DurationMS int64          `json:"duration_ms"`
	}{
		Stage:      r.Stage,
		StoreID:    r.StoreID,
		OK:         r.OK(),
		Processed:  r.Processed,
		Skipped:    r.Skipped,
		Failed:     r.Failed,
		DurationMS: r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
		out.ErrorKind = string(syncerr.KindOf(r.Err))
	}
	return json.Marshal(out)
}

func (r *Result) record(o Outcome, err error) {
	switch {
	case err != nil:
		r.fail(err)
	case o == Skipped:
		r.Skipped++
	default:
		r.Processed++
	}
}

func (r *Result) fail(err error) {
	r.Failed++
	if r.Err == nil {
		r.Err = err
	}
}

// PipelineDeps wires a Pipeline.
type PipelineDeps struct {
	Tokens     upstream.TokenProvider
	POS        POS
	Reconciler *Reconciler
	Stores     repository.StoreRepository
	Catalog    repository.CatalogRepository
	ExportDir  string
	Logger     logrus.FieldLogger
}

// Pipeline runs the four sync stages. A stage never returns an error; every
// failure is logged and folded into its Result.
type Pipeline struct {
	tokens    upstream.TokenProvider
	pos       POS
	rec       *Reconciler
	stores    repository.StoreRepository
	catalog   repository.CatalogRepository
	exportDir string
	log       logrus.FieldLogger
}

// NewPipeline creates a pipeline from deps.
func NewPipeline(deps PipelineDeps) *Pipeline {
	log := deps.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{
		tokens:    deps.Tokens,
		pos:       deps.POS,
		rec:       deps.Reconciler,
		stores:    deps.Stores,
		catalog:   deps.Catalog,
		exportDir: deps.ExportDir,
		log:       log.WithField("component", "pipeline"),
	}
}

func (p *Pipeline) begin(kind model.TaskKind, storeID string) (Result, time.Time) {
	p.log.WithFields(logrus.Fields{"stage": kind, "store_id": storeID}).Info("stage started")
	return Result{Stage: kind, StoreID: storeID}, time.Now()
}

func (p *Pipeline) finish(res *Result, start time.Time) {
	res.Duration = time.Since(start)
	entry := p.log.WithFields(logrus.Fields{
		"stage":     res.Stage,
		"store_id":  res.StoreID,
		"processed": res.Processed,
		"skipped":   res.Skipped,
		"failed":    res.Failed,
		"took":      res.Duration.Round(time.Millisecond),
	})
	if res.OK() {
		entry.Info("stage finished")
		return
	}
	if res.Err != nil {
		entry = entry.WithError(res.Err).WithField("kind", syncerr.KindOf(res.Err))
	}
	entry.Error("stage failed")
}

func (p *Pipeline) recordFailure(res *Result, storeID, id string, err error) {
	res.fail(err)
	p.log.WithFields(logrus.Fields{
		"stage":    res.Stage,
		"store_id": storeID,
		"id":       id,
		"kind":     syncerr.KindOf(err),
	}).WithError(err).Warn("record failed")
}

func (p *Pipeline) credential(ctx context.Context, res *Result) (model.Credential, bool) {
	cred, err := p.tokens.Acquire(ctx)
	if err != nil {
		res.fail(err)
		return cred, false
	}
	return cred, true
}

// storeScope returns storeID alone, or every mirrored store when it is empty.
func (p *Pipeline) storeScope(ctx context.Context, storeID string, res *Result) ([]string, bool) {
	if storeID != "" {
		return []string{storeID}, true
	}
	stores, err := p.stores.ListStores(ctx)
	if err != nil {
		res.fail(syncerr.Storage("list stores", err))
		return nil, false
	}
	ids := make([]string, 0, len(stores))
	for _, s := range stores {
		ids = append(ids, s.ID)
	}
	return ids, true
}

// SyncStores mirrors the POS store list. With storeID set only that store is
// written.
func (p *Pipeline) SyncStores(ctx context.Context, storeID string) (res Result) {
	res, start := p.begin(model.KindStores, storeID)
	defer p.finish(&res, start)

	cred, ok := p.credential(ctx, &res)
	if !ok {
		return res
	}
	for rec, err := range p.pos.Stores(ctx, cred) {
		if err != nil {
			p.recordFailure(&res, "", "", err)
			continue
		}
		if storeID != "" && rec.ID.String() != storeID {
			continue
		}
		o, err := p.rec.UpsertStore(ctx, rec)
		if err != nil {
			p.recordFailure(&res, rec.ID.String(), "", err)
			continue
		}
		res.record(o, nil)
	}
	return res
}

// SyncProducts upserts the web products of storeID, or of every mirrored
// store. A failed store does not stop its siblings.
func (p *Pipeline) SyncProducts(ctx context.Context, storeID string) (res Result) {
	res, start := p.begin(model.KindProducts, storeID)
	defer p.finish(&res, start)

	cred, ok := p.credential(ctx, &res)
	if !ok {
		return res
	}
	stores, ok := p.storeScope(ctx, storeID, &res)
	if !ok {
		return res
	}
	for _, sid := range stores {
		for rec, err := range p.pos.WebProducts(ctx, cred, sid) {
			if err != nil {
				p.recordFailure(&res, sid, "", err)
				continue
			}
			if _, err := p.rec.UpsertProduct(ctx, sid, rec); err != nil {
				p.recordFailure(&res, sid, rec.ID.String(), err)
				continue
			}
			res.Processed++
		}
	}
	return res
}

// SyncInventory writes the stock of every catalog product for the stores it
// is associated with. With storeID set only that store's lines are fetched.
func (p *Pipeline) SyncInventory(ctx context.Context, storeID string) (res Result) {
	res, start := p.begin(model.KindInventory, storeID)
	defer p.finish(&res, start)

	cred, ok := p.credential(ctx, &res)
	if !ok {
		return res
	}
	products, err := p.catalog.ListProducts(ctx)
	if err != nil {
		res.fail(syncerr.Storage("list products", err))
		return res
	}
	for i := range products {
		prod := &products[i]
		if len(prod.StoreIDs) == 0 || (storeID != "" && !prod.HasStore(storeID)) {
			continue
		}
		stock, err := p.pos.StockInfo(ctx, cred, prod.AsposID, storeID)
		if err != nil {
			p.recordFailure(&res, storeID, prod.AsposID, err)
			continue
		}
		for _, st := range stock {
			o, err := p.rec.UpsertInventory(ctx, prod, st)
			if err != nil {
				p.recordFailure(&res, st.StoreID.String(), prod.AsposID, err)
				continue
			}
			res.record(o, nil)
		}
	}
	return res
}

// SyncPrices refreshes the price columns of existing inventory lines. Prices
// are exported to a side file first, applied from it, and the file removed.
func (p *Pipeline) SyncPrices(ctx context.Context, storeID string) (res Result) {
	res, start := p.begin(model.KindPrices, storeID)
	defer p.finish(&res, start)

	cred, ok := p.credential(ctx, &res)
	if !ok {
		return res
	}
	stores, ok := p.storeScope(ctx, storeID, &res)
	if !ok {
		return res
	}

	export, err := newPriceExport(p.exportDir)
	if err != nil {
		res.fail(syncerr.Storage("price export", err))
		return res
	}
	defer export.remove()

	for _, sid := range stores {
		for rec, err := range p.pos.WebProducts(ctx, cred, sid) {
			if err != nil {
				p.recordFailure(&res, sid, "", err)
				continue
			}
			if rec.ID == "" {
				continue
			}
			u := model.PriceUpdate{
				AsposProductID: rec.ID.String(),
				StoreID:        sid,
				PriceInclTax:   rec.PriceInclTax,
				PriceExclTax:   rec.PriceExclTax,
			}
			if err := export.write(u); err != nil {
				res.fail(syncerr.Storage("price export", err))
				return res
			}
		}
	}
	p.log.WithFields(logrus.Fields{"rows": export.rows, "file": export.path()}).Debug("price export written")

	err = export.apply(ctx,
		func(u model.PriceUpdate) {
			o, err := p.rec.UpdatePrice(ctx, u)
			if err != nil {
				p.recordFailure(&res, u.StoreID, u.AsposProductID, err)
				return
			}
			res.record(o, nil)
		},
		func(err error) {
			p.recordFailure(&res, "", "", syncerr.Storage("read price export", err))
		})
	if err != nil {
		res.fail(syncerr.Storage("apply price export", err))
	}
	return res
}

// Run invokes the stage for kind.
func (p *Pipeline) Run(ctx context.Context, kind model.TaskKind, storeID string) Result {
	switch kind {
	case model.KindStores:
		return p.SyncStores(ctx, storeID)
	case model.KindProducts:
		return p.SyncProducts(ctx, storeID)
	case model.KindInventory:
		return p.SyncInventory(ctx, storeID)
	case model.KindPrices:
		return p.SyncPrices(ctx, storeID)
	}
	return Result{Stage: kind, StoreID: storeID, Failed: 1, Err: fmt.Errorf("unknown stage %q", kind)}
}

// SyncAll runs every stage for all stores in pipeline order. Later stages
// run even when an earlier one failed.
func (p *Pipeline) SyncAll(ctx context.Context) []Result {
	results := make([]Result, 0, len(model.PipelineOrder))
	for _, kind := range model.PipelineOrder {
		results = append(results, p.Run(ctx, kind, ""))
	}
	return results
}

// Dispatch runs a queued task and returns the stage failure, if any.
func (p *Pipeline) Dispatch(ctx context.Context, task model.SyncTask) error {
	return p.Run(ctx, task.Kind, task.StoreID).Error()
}
