package debbugs

import (
	"context"
	"fmt"
	"strings"

	"github.com/smnsjas/go-debbugs/batch"
	"github.com/smnsjas/go-debbugs/bug"
	"github.com/smnsjas/go-debbugs/envelope"
	"github.com/smnsjas/go-debbugs/soapenc"
)

// Criteria selects bugs for GetBugs. Keys are Debbugs search fields such as
// "package", "src", "maint", "submitter", "severity", "status", "tag",
// "owner", "correspondent", "affects", "bugs" and "archive". Values are
// strings, integers, or slices of them to match any of several values.
//
// Keys are not checked; the server ignores the ones it does not know. Keys
// are sent in sorted order.
type Criteria map[string]any

// GetStatus fetches the status of the given bugs.
//
// Large id lists are sent in batches of BatchSize, one after another; the
// first failing batch ends the call and its error is returned. Reports come
// back in the order the server sends them. Ids that do not exist are left
// out, so the result may be shorter than ids. No ids means no request.
func (c *Client) GetStatus(ctx context.Context, ids ...int) ([]*bug.Report, error) {
	reports, err := batch.Run(ctx, ids, c.batchSize, func(ctx context.Context, b batch.Batch) ([]*bug.Report, error) {
		c.logger.Debug("get_status batch", "batch", b.Index, "size", len(b.IDs))

		v, err := c.call(ctx, envelope.GetStatus, b.IDs)
		if err != nil {
			return nil, err
		}
		reports, err := bug.ParseStatuses(v)
		if err != nil {
			return nil, shapeError(envelope.GetStatus, err)
		}
		return reports, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	return reports, nil
}

// GetUsertag returns the bugs tagged by the user email, keyed by tag. When
// tags are given only those tags are returned.
func (c *Client) GetUsertag(ctx context.Context, email string, tags ...string) (map[string][]int, error) {
	args := make([]any, 0, len(tags)+1)
	args = append(args, email)
	for _, tag := range tags {
		args = append(args, tag)
	}

	v, err := c.call(ctx, envelope.GetUsertag, args...)
	if err != nil {
		return nil, fmt.Errorf("get usertag: %w", err)
	}

	usertags, err := parseUsertags(v)
	if err != nil {
		return nil, fmt.Errorf("get usertag: %w", shapeError(envelope.GetUsertag, err))
	}
	return usertags, nil
}

// parseUsertags accepts both the typed apachens:Map answer and the untyped
// struct the server sends for some users; both decode to a Map. Nothing at
// all means no usertags.
func parseUsertags(v soapenc.Value) (map[string][]int, error) {
	usertags := map[string][]int{}

	switch val := v.(type) {
	case nil:
		return usertags, nil

	case soapenc.Text:
		if strings.TrimSpace(string(val)) == "" {
			return usertags, nil
		}

	case soapenc.Map:
		for _, f := range val {
			ids, err := soapenc.Ints(f.Value)
			if err != nil {
				return nil, fmt.Errorf("tag %q: %w", f.Name, err)
			}
			usertags[f.Name] = ids
		}
		return usertags, nil
	}
	return nil, fmt.Errorf("%w: usertags are %s, want map", soapenc.ErrUnexpectedShape, soapenc.Describe(v))
}

// GetBugLog fetches every message of bug id, oldest first.
func (c *Client) GetBugLog(ctx context.Context, id int) ([]*bug.Log, error) {
	v, err := c.call(ctx, envelope.GetBugLog, id)
	if err != nil {
		return nil, fmt.Errorf("get bug log %d: %w", id, err)
	}

	logs, err := bug.ParseLogs(v)
	if err != nil {
		return nil, fmt.Errorf("get bug log %d: %w", id, shapeError(envelope.GetBugLog, err))
	}
	return logs, nil
}

// NewestBugs returns the numbers of the amount most recently filed bugs.
func (c *Client) NewestBugs(ctx context.Context, amount int) ([]int, error) {
	v, err := c.call(ctx, envelope.NewestBugs, amount)
	if err != nil {
		return nil, fmt.Errorf("newest bugs: %w", err)
	}

	ids, err := soapenc.Ints(v)
	if err != nil {
		return nil, fmt.Errorf("newest bugs: %w", shapeError(envelope.NewestBugs, err))
	}
	return ids, nil
}

// GetBugs returns the numbers of the bugs matching every key in criteria.
// The criteria travel as a single array of alternating keys and values.
func (c *Client) GetBugs(ctx context.Context, criteria Criteria) ([]int, error) {
	v, err := c.call(ctx, envelope.GetBugs, map[string]any(criteria))
	if err != nil {
		return nil, fmt.Errorf("get bugs: %w", err)
	}

	ids, err := soapenc.Ints(v)
	if err != nil {
		return nil, fmt.Errorf("get bugs: %w", shapeError(envelope.GetBugs, err))
	}
	return ids, nil
}
