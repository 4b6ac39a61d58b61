package client

import (
	"fmt"
	"strings"
)

// demoPayloads maps normalized logical paths to canned responses. They are
// served whenever no real backend is reachable, so rendering code never needs
// a separate offline path. Every payload carries "demo": true.
var demoPayloads = map[string]string{
	"/api/health": `{"status":"ok","demo":true}`,
	"/api/profile": `{"name":"Site Owner","title":"Software Engineer","location":"Remote",` +
		`"summary":"Placeholder profile served while the backend is unreachable.","demo":true}`,
	"/api/projects": `{"projects":[` +
		`{"id":"demo-1","title":"Sample Project","description":"Shown while offline.","tags":["go","web"]},` +
		`{"id":"demo-2","title":"Another Project","description":"Shown while offline.","tags":["api"]}],"demo":true}`,
	"/api/blog/posts": `{"posts":[` +
		`{"id":"demo-post","title":"Offline placeholder post","excerpt":"The backend is unreachable, this is canned content.","publishedAt":"2024-01-01T00:00:00Z"}],"demo":true}`,
	"/api/skills":     `{"skills":["Go","TypeScript","Kubernetes","PostgreSQL"],"demo":true}`,
	"/api/experience": `{"entries":[{"company":"Placeholder Ltd","role":"Engineer","from":"2020","to":"present"}],"demo":true}`,
}

// demoLookup returns the canned payload for a logical path. Unknown paths get
// a generic placeholder rather than an error, keeping Request total.
func demoLookup(path string) []byte {
	if payload, ok := demoPayloads[normalizePath(path)]; ok {
		return []byte(payload)
	}

	return []byte(fmt.Sprintf(`{"message":"No demo data for this resource.","path":%q,"demo":true}`, normalizePath(path)))
}

func normalizePath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}

	return path
}
