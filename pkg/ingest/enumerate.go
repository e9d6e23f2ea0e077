package ingest

import (
	"context"
	"strconv"
)

// shardableFolderThreshold is the item count above which a folder gets a
// shardable-folder warning per spec.md §4.2 ("no automatic sharding is
// mandated").
const shardableFolderThreshold = 10000

// EnumerateResult is the flattened output of a recursive folder walk.
type EnumerateResult struct {
	Files    []Entry
	Warnings []string
}

// Enumerate walks src starting at rootFolderID, iteratively (an explicit
// work stack, not recursion) so deep trees don't grow the Go call stack,
// and tracks visited folder IDs to avoid looping on symbolic cycles a
// misbehaving provider might expose.
func Enumerate(ctx context.Context, src Source, rootFolderID string) (EnumerateResult, error) {
	var result EnumerateResult
	visited := map[string]bool{}
	stack := []string{rootFolderID}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		folderID := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[folderID] {
			continue
		}
		visited[folderID] = true

		children, err := src.ListChildren(ctx, folderID)
		if err != nil {
			return result, err
		}

		if len(children) > shardableFolderThreshold {
			result.Warnings = append(result.Warnings, shardableFolderWarning(folderID, len(children)))
		}

		for _, child := range children {
			if child.IsFolder {
				if !visited[child.ID] {
					stack = append(stack, child.ID)
				}
				continue
			}
			result.Files = append(result.Files, child)
		}
	}

	return result, nil
}

func shardableFolderWarning(folderID string, count int) string {
	return "folder " + folderID + " contains " + strconv.Itoa(count) + " items, exceeding the shardable-folder threshold"
}
