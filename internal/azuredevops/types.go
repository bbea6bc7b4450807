package azuredevops

import "strings"

// WorkItem is the flattened view of an Azure DevOps work item, carrying the
// fields the mood scorer and the tool formatters need.
type WorkItem struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	State       string   `json:"state"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	AssignedTo  string   `json:"assignedTo,omitempty"`
	Priority    int      `json:"priority,omitempty"`
	URL         string   `json:"url,omitempty"`
}

// NewPullRequest describes a pull request to create. Branch names are short
// names; the refs/heads/ prefix is added on the wire.
type NewPullRequest struct {
	Title        string
	Description  string
	SourceBranch string
	TargetBranch string

	// WorkItemID links the pull request to a work item when positive.
	WorkItemID int
}

// PullRequest is the created pull request as the API reports it.
type PullRequest struct {
	ID           int    `json:"pullRequestId"`
	Status       string `json:"status"`
	Title        string `json:"title"`
	SourceBranch string `json:"sourceRefName"`
	TargetBranch string `json:"targetRefName"`
	URL          string `json:"url"`
}

// workItemResponse mirrors the API's work item envelope. Field reference
// names are the API's own.
type workItemResponse struct {
	ID     int    `json:"id"`
	URL    string `json:"url"`
	Fields struct {
		Title       string      `json:"System.Title"`
		Type        string      `json:"System.WorkItemType"`
		State       string      `json:"System.State"`
		Description string      `json:"System.Description"`
		Tags        string      `json:"System.Tags"`
		AssignedTo  identityRef `json:"System.AssignedTo"`
		Priority    int         `json:"Microsoft.VSTS.Common.Priority"`
	} `json:"fields"`
}

type identityRef struct {
	DisplayName string `json:"displayName"`
	UniqueName  string `json:"uniqueName"`
}

func (r workItemResponse) toWorkItem() *WorkItem {
	return &WorkItem{
		ID:          r.ID,
		Title:       r.Fields.Title,
		Type:        r.Fields.Type,
		State:       r.Fields.State,
		Description: r.Fields.Description,
		Tags:        splitTags(r.Fields.Tags),
		AssignedTo:  r.Fields.AssignedTo.DisplayName,
		Priority:    r.Fields.Priority,
		URL:         r.URL,
	}
}

// splitTags splits the API's "tag1; tag2" tag string.
func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if tag := strings.TrimSpace(p); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
