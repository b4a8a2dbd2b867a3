package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/beacon/internal/alert"
	"github.com/linnemanlabs/beacon/internal/lifecycle"
	"github.com/linnemanlabs/beacon/internal/notify"
)

// NotifyNode fans one message out to active notification channels. Channel
// sends are independent; the node only fails when every attempted channel
// fails.
type NotifyNode struct {
	drivers *notify.Registry
	store   lifecycle.Store
	now     func() time.Time
}

// NewNotifyNode creates a notify node.
func NewNotifyNode(drivers *notify.Registry, store lifecycle.Store) *NotifyNode {
	return &NotifyNode{drivers: drivers, store: store, now: time.Now}
}

func (n *NotifyNode) Type() string { return "notify" }

// ValidateConfig verifies the optional channel type selection, given either
// as "channel_types" (list) or "channel_type" (single name).
func (n *NotifyNode) ValidateConfig(config map[string]any) []string {
	var errs []string
	if _, ok := config["channel_types"]; ok && configStrings(config, "channel_types") == nil {
		errs = append(errs, `"channel_types" must be a list of driver types`)
	}
	if v, ok := config["channel_type"]; ok {
		if s, isStr := v.(string); !isStr || s == "" {
			errs = append(errs, `"channel_type" must be a non-empty string`)
		}
	}
	return errs
}

// Execute resolves matching active channels, falling back to the first
// active channel of any type, then delivers one summary message per channel.
func (n *NotifyNode) Execute(ctx context.Context, nc *NodeContext, config map[string]any) *NodeResult {
	res := &NodeResult{}

	types := configStrings(config, "channel_types")
	if len(types) == 0 {
		if single := configString(config, "channel_type"); single != "" {
			types = []string{single}
		}
	}

	channels, err := n.store.ActiveChannels(ctx, types)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("list channels: %v", err))
		return res
	}
	if len(channels) == 0 && len(types) > 0 {
		// no channel of the requested types; fall back to any active channel
		all, err := n.store.ActiveChannels(ctx, nil)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("list channels: %v", err))
			return res
		}
		if len(all) > 0 {
			channels = all[:1]
		}
	}
	if len(channels) == 0 {
		res.Output = map[string]any{"sent": 0, "failed": 0, "deliveries": []map[string]any{}}
		res.Skipped = true
		res.SkipReason = "no active notification channels"
		return res
	}

	msg := n.buildMessage(nc)

	deliveries := make([]map[string]any, 0, len(channels))
	var sent, failed int
	for _, ch := range channels {
		entry := map[string]any{"channel": ch.Name, "type": ch.Type}

		driver, err := n.drivers.Get(ch.Type)
		if err != nil {
			entry["success"] = false
			entry["error"] = err.Error()
			failed++
			deliveries = append(deliveries, entry)
			continue
		}

		sr, err := driver.Send(ctx, msg, ch.Config)
		if err != nil {
			entry["success"] = false
			entry["error"] = err.Error()
			failed++
		} else {
			entry["success"] = true
			if sr != nil && sr.MessageID != "" {
				entry["message_id"] = sr.MessageID
			}
			sent++
		}
		deliveries = append(deliveries, entry)
	}

	res.Output = map[string]any{
		"sent":       sent,
		"failed":     failed,
		"deliveries": deliveries,
	}
	if sent == 0 {
		res.Errors = append(res.Errors, fmt.Sprintf("all %d channel sends failed", failed))
	}
	return res
}

// buildMessage summarizes the run so far: severity and title come from the
// worst check status when checks ran, otherwise from the ingested alert;
// analysis recommendations become the body.
func (n *NotifyNode) buildMessage(nc *NodeContext) *notify.Message {
	msg := &notify.Message{
		Severity:   alert.SeverityInfo,
		IncidentID: nc.IncidentID,
		Timestamp:  n.now(),
		Fields:     map[string]string{},
	}
	if nc.Source != "" {
		msg.Fields["source"] = nc.Source
	}

	for _, out := range nc.PreviousOutputs {
		if name, ok := out["alert_name"].(string); ok && name != "" {
			msg.AlertName = name
		}
		if sev, ok := out["severity"].(string); ok && sev != "" {
			msg.Severity = alert.NormalizeSeverity(sev)
		}
	}

	if worst, count, ok := worstCheckStatus(nc); ok {
		msg.Title = fmt.Sprintf("%d check(s) %s", count, worst)
		switch worst {
		case "critical":
			msg.Severity = alert.SeverityCritical
		case "warning":
			if msg.Severity != alert.SeverityCritical {
				msg.Severity = alert.SeverityWarning
			}
		}
	}
	if msg.Title == "" {
		if msg.AlertName != "" {
			msg.Title = msg.AlertName
		} else {
			msg.Title = "Pipeline notification"
		}
	}

	if body := analysisSummary(nc); body != "" {
		msg.Body = body
	}
	return msg
}

var checkStatusRank = map[string]int{"ok": 0, "unknown": 1, "warning": 2, "critical": 3}

// worstCheckStatus scans prior outputs for a checks map and returns the worst
// non-ok status and how many checks carry it.
func worstCheckStatus(nc *NodeContext) (string, int, bool) {
	worst, count := "", 0
	found := false
	for _, out := range nc.PreviousOutputs {
		checks, ok := out["checks"].(map[string]any)
		if !ok {
			continue
		}
		found = true
		for _, v := range checks {
			entry, ok := v.(map[string]any)
			if !ok {
				continue
			}
			status, _ := entry["status"].(string)
			if status == "ok" || status == "" {
				continue
			}
			switch {
			case checkStatusRank[status] > checkStatusRank[worst]:
				worst, count = status, 1
			case status == worst:
				count++
			}
		}
	}
	if !found || worst == "" {
		return "", 0, false
	}
	return worst, count, true
}

// analysisSummary renders recommendation titles from any prior intelligence
// output.
func analysisSummary(nc *NodeContext) string {
	for _, out := range nc.PreviousOutputs {
		recs, ok := out["recommendations"].([]map[string]any)
		if !ok || len(recs) == 0 {
			continue
		}
		var b strings.Builder
		b.WriteString("Recommended actions:")
		for _, r := range recs {
			if title, ok := r["title"].(string); ok && title != "" {
				fmt.Fprintf(&b, "\n• %s", title)
			}
		}
		return b.String()
	}
	return ""
}
