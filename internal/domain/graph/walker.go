// Package graph finds cc recipients in a process execution graph.
//
// Two policies exist because callers know different things about the
// graph position: right after a task completes only the next index is
// relevant, while at process start the whole path up to the reached node
// must be scanned since the reached node need not be the next index.
package graph

import "github.com/garyjia/approval-bridge/internal/domain/entity"

// NextNodeNotifiers implements the single-next-node policy: it returns the
// users of node_infos[fromStep+1] when that node is a notifier.
func NextNodeNotifiers(p *entity.ProcessInstance, fromStep int) []entity.NodeUser {
	if p == nil {
		return nil
	}
	next := fromStep + 1
	if next < 0 || next >= len(p.NodeInfos) {
		return nil
	}
	node := p.NodeInfos[next]
	if !node.IsNotifier() {
		return nil
	}
	return append([]entity.NodeUser(nil), node.NodeUserList...)
}

// ReachedNotifiers implements the prefix-scan policy: it collects the users
// of every notifier node up to and including the node matching
// p.NodeID, deduplicated by full record equality in first-seen order.
func ReachedNotifiers(p *entity.ProcessInstance) []entity.NodeUser {
	if p == nil {
		return nil
	}

	var collected []entity.NodeUser
	for _, node := range p.NodeInfos {
		if node.IsNotifier() {
			collected = append(collected, node.NodeUserList...)
		}
		if node.NodeID == p.NodeID {
			break
		}
	}
	return Dedupe(collected)
}

// Dedupe drops repeated recipients, keeping the first occurrence.
func Dedupe(users []entity.NodeUser) []entity.NodeUser {
	if len(users) == 0 {
		return nil
	}
	seen := make(map[entity.NodeUser]struct{}, len(users))
	out := make([]entity.NodeUser, 0, len(users))
	for _, u := range users {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
