// Package batch runs the operator commands shared by the CLI, the HTTP
// batch endpoint and the scheduler.
package batch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/storebridge/storebridge/internal/inventory"
	"github.com/storebridge/storebridge/internal/orders"
	"github.com/storebridge/storebridge/jobs"
)

// Command names.
const (
	CmdInventorySync = "inventory-sync"
	CmdOrderStatus   = "order-status"
	CmdOrderCreate   = "order-create"
	CmdStatusSweep   = "status-sweep"
	CmdJobs          = "jobs"
)

// Commands lists the supported commands in help order.
var Commands = []string{CmdInventorySync, CmdOrderStatus, CmdOrderCreate, CmdStatusSweep, CmdJobs}

// Inventory runs inventory syncs.
type Inventory interface {
	Sync(ctx context.Context, req inventory.Request) (*inventory.Summary, error)
}

// Orders runs order reconciliation.
type Orders interface {
	SyncStatuses(ctx context.Context, orderIDs []int64) *orders.BatchResult
	CreateWithRetry(ctx context.Context, req orders.CreateRequest) (*orders.CreateResult, error)
	SweepStatuses(ctx context.Context, from, to time.Time) (*orders.SweepResult, error)
}

// Jobs controls the background queue.
type Jobs interface {
	Trigger(ctx context.Context, name string) (string, error)
	Stats(ctx context.Context) ([]jobs.QueueStats, error)
}

// Options carries parsed flags and positional arguments.
type Options struct {
	Limit  int
	Offset int
	Args   []string
}

// Result is the outcome of one command. Lines is the human rendering.
type Result struct {
	Command string   `json:"command"`
	OK      bool     `json:"ok"`
	Data    any      `json:"data,omitempty"`
	Error   string   `json:"error,omitempty"`
	Lines   []string `json:"-"`
	// Usage marks errors caused by bad arguments.
	Usage bool `json:"-"`
}

// ExitCode maps the result to a process exit status.
func (r Result) ExitCode() int {
	if r.OK {
		return 0
	}
	return 1
}

// Runner executes commands. Any dependency may be nil, in which case
// the commands needing it fail.
type Runner struct {
	inventory Inventory
	orders    Orders
	jobs      Jobs
	now       func() time.Time
}

// NewRunner constructs a Runner.
func NewRunner(inv Inventory, ord Orders, jb Jobs) *Runner {
	return &Runner{inventory: inv, orders: ord, jobs: jb, now: time.Now}
}

// Run executes command with opts.
func (r *Runner) Run(ctx context.Context, command string, opts Options) Result {
	switch command {
	case CmdInventorySync:
		return r.inventorySync(ctx, opts)
	case CmdOrderStatus:
		return r.orderStatus(ctx, opts)
	case CmdOrderCreate:
		return r.orderCreate(ctx, opts)
	case CmdStatusSweep:
		return r.statusSweep(ctx, opts)
	case CmdJobs:
		return r.jobsCommand(ctx, opts)
	}
	return usage(command, fmt.Sprintf("unknown command %q (expected one of %s)", command, strings.Join(Commands, ", ")))
}

func (r *Runner) inventorySync(ctx context.Context, opts Options) Result {
	res := Result{Command: CmdInventorySync}
	if r.inventory == nil {
		return failed(res, "inventory sync not configured")
	}
	summary, err := r.inventory.Sync(ctx, inventory.Request{Limit: opts.Limit, Offset: opts.Offset})
	res.Data = summary
	if summary != nil {
		res.Lines = append(res.Lines, fmt.Sprintf("total=%d synced=%d skipped=%d errors=%d unchanged=%d",
			summary.Total, summary.Synced, summary.Skipped, summary.Errored, summary.Unchanged))
		for _, c := range summary.Changes {
			res.Lines = append(res.Lines, fmt.Sprintf("  %s: %d -> %d", c.SKU, c.Before, c.After))
		}
		for _, e := range summary.Errors {
			res.Lines = append(res.Lines, "  error: "+e)
		}
	}
	if err != nil {
		return failed(res, err.Error())
	}
	res.OK = summary.Errored == 0
	if !res.OK {
		res.Error = fmt.Sprintf("%d products failed", summary.Errored)
	}
	return res
}

func (r *Runner) orderStatus(ctx context.Context, opts Options) Result {
	res := Result{Command: CmdOrderStatus}
	if r.orders == nil {
		return failed(res, "order sync not configured")
	}
	ids, err := parseIDs(opts.Args)
	if err != nil {
		return usage(CmdOrderStatus, err.Error())
	}
	if len(ids) == 0 {
		return usage(CmdOrderStatus, "at least one order id is required")
	}
	batch := r.orders.SyncStatuses(ctx, ids)
	res.Data = batch
	for _, s := range batch.Results {
		line := fmt.Sprintf("%d: %s", s.OrderID, s.Message)
		if s.Updated {
			line = fmt.Sprintf("%d: %s -> %s (%s)", s.OrderID, s.PreviousStatus, s.Status, strings.Join(s.TrackingNumbers, ", "))
		}
		res.Lines = append(res.Lines, line)
	}
	for _, f := range batch.Failures {
		res.Lines = append(res.Lines, fmt.Sprintf("%d: error: %s", f.OrderID, f.Error))
	}
	res.OK = len(batch.Failures) == 0
	if !res.OK {
		res.Error = fmt.Sprintf("%d orders failed", len(batch.Failures))
	}
	return res
}

func (r *Runner) orderCreate(ctx context.Context, opts Options) Result {
	res := Result{Command: CmdOrderCreate}
	if r.orders == nil {
		return failed(res, "order sync not configured")
	}
	ids, err := parseIDs(opts.Args)
	if err != nil {
		return usage(CmdOrderCreate, err.Error())
	}
	if len(ids) != 1 {
		return usage(CmdOrderCreate, "exactly one order id is required")
	}
	created, err := r.orders.CreateWithRetry(ctx, orders.CreateRequest{OrderID: ids[0]})
	if err != nil {
		return failed(res, err.Error())
	}
	res.OK = true
	res.Data = created
	if created.AlreadyExists {
		res.Lines = append(res.Lines, fmt.Sprintf("%d: sales order %s already exists", created.OrderID, created.SalesOrderID))
	} else {
		res.Lines = append(res.Lines, fmt.Sprintf("%d: created sales order %s for customer %s (attempts=%d)",
			created.OrderID, created.SalesOrderID, created.CustomerID, created.Attempts))
	}
	return res
}

func (r *Runner) statusSweep(ctx context.Context, opts Options) Result {
	res := Result{Command: CmdStatusSweep}
	if r.orders == nil {
		return failed(res, "order sync not configured")
	}
	var fromArg, toArg string
	switch len(opts.Args) {
	case 0:
	case 2:
		fromArg, toArg = opts.Args[0], opts.Args[1]
	default:
		return usage(CmdStatusSweep, "expected <from YYYY-MM-DD> <to YYYY-MM-DD>")
	}
	from, to, err := orders.SweepWindow(fromArg, toArg, 0, r.now())
	if err != nil {
		return usage(CmdStatusSweep, err.Error())
	}
	sweep, err := r.orders.SweepStatuses(ctx, from, to)
	if err != nil {
		return failed(res, err.Error())
	}
	res.Data = sweep
	res.Lines = append(res.Lines, fmt.Sprintf("%s..%s checked=%d updated=%d failed=%d",
		sweep.From, sweep.To, sweep.Checked, sweep.Updated(), len(sweep.Failures)))
	for _, f := range sweep.Failures {
		res.Lines = append(res.Lines, fmt.Sprintf("  %d: %s", f.OrderID, f.Error))
	}
	res.OK = len(sweep.Failures) == 0
	if !res.OK {
		res.Error = fmt.Sprintf("%d orders failed", len(sweep.Failures))
	}
	return res
}

func (r *Runner) jobsCommand(ctx context.Context, opts Options) Result {
	res := Result{Command: CmdJobs}
	if r.jobs == nil {
		return failed(res, "job queue not configured")
	}
	if len(opts.Args) == 0 {
		return usage(CmdJobs, "expected: jobs trigger <task> | jobs stats")
	}
	switch opts.Args[0] {
	case "trigger":
		if len(opts.Args) != 2 {
			return usage(CmdJobs, "expected: jobs trigger <task>")
		}
		id, err := r.jobs.Trigger(ctx, opts.Args[1])
		if err != nil {
			return failed(res, err.Error())
		}
		res.OK = true
		res.Data = map[string]string{"task": opts.Args[1], "id": id}
		res.Lines = append(res.Lines, fmt.Sprintf("enqueued %s (%s)", opts.Args[1], id))
	case "stats":
		stats, err := r.jobs.Stats(ctx)
		if err != nil {
			return failed(res, err.Error())
		}
		res.OK = true
		res.Data = stats
		for _, s := range stats {
			res.Lines = append(res.Lines, fmt.Sprintf("%s: pending=%d active=%d scheduled=%d retry=%d archived=%d",
				s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived))
		}
	default:
		return usage(CmdJobs, fmt.Sprintf("unknown jobs subcommand %q", opts.Args[0]))
	}
	return res
}

// parseIDs accepts ids as separate arguments or comma-separated.
func parseIDs(args []string) ([]int64, error) {
	var ids []int64
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("invalid order id %q", part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func failed(res Result, msg string) Result {
	res.OK = false
	res.Error = msg
	return res
}

func usage(command, msg string) Result {
	return Result{Command: command, Error: msg, Usage: true}
}
