package gke

import (
	"strings"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/logging"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/telemetry"
)

const podLabelPrefix = "k8s-pod-label/"

// containerTagSuffixIndex is the dot-separated segment of a container log
// tag where the "<pod>_<namespace>_<container>-<id>" part starts, as in
// "kubernetes.var.log.containers.<pod>_<namespace>_<container>-<id>.log".
const containerTagSuffixIndex = 4

func (f *Filter) container(tag string, r map[string]any) map[string]any {
	if isEmptyInsertID(r[f.cfg.InsertIDKey]) {
		r[f.cfg.InsertIDKey] = f.ids.Next()
		telemetry.InsertIDsGenerated.Inc()
	}

	// kubernetes.labels.app=x becomes labels["k8s-pod-label/app"]=x.
	if k8s, ok := r["kubernetes"].(map[string]any); ok {
		if labels, ok := k8s["labels"].(map[string]any); ok {
			out := make(map[string]any, len(labels))
			for k, v := range labels {
				out[podLabelPrefix+k] = v
			}
			r[LabelsKey] = out
		}
	}
	delete(r, "kubernetes")
	delete(r, "docker")

	ct, ok := parseContainerTag(tag)
	if !ok {
		telemetry.MalformedTags.Inc()
		logging.L().Debug("gke filter: unexpected container tag layout", "tag", tag)
	}
	r[LocalResourceIDKey] = ct.resourceID()

	// "message" is flattened into textPayload by the output; "log" is not.
	r["message"] = r["log"]
	if isFalsy(r["severity"]) {
		if r["stream"] == "stderr" {
			r["severity"] = "ERROR"
		} else {
			r["severity"] = "INFO"
		}
	}
	delete(r, "log")
	delete(r, "stream")
	return r
}

func isEmptyInsertID(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	return false
}

func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	}
	return false
}

type containerTag struct {
	Namespace string
	Pod       string
	Container string
}

func (c containerTag) resourceID() string {
	return "k8s_container." + c.Namespace + "." + c.Pod + "." + c.Container
}

// parseContainerTag extracts namespace, pod and container names from a
// container log tag such as
//
//	kubernetes.var.log.containers.<pod>_<namespace>_<container>-<id>.log
//
// ok is false when the tag does not have that layout. The returned value is
// still filled in as far as the tag allows, with missing parts left empty.
func parseContainerTag(tag string) (containerTag, bool) {
	segments := strings.Split(tag, ".")
	ok := len(segments) > containerTagSuffixIndex

	var suffix string
	if ok {
		suffix = strings.Join(segments[containerTagSuffixIndex:], ".")
	}
	base, found := headBeforeLast(suffix, ".")
	ok = ok && found

	parts := strings.Split(base, "_")
	ok = ok && len(parts) == 3

	container, found := headBeforeLast(partAt(parts, 2), "-")
	ok = ok && found

	return containerTag{
		Namespace: partAt(parts, 1),
		Pod:       partAt(parts, 0),
		Container: container,
	}, ok
}

// headBeforeLast returns s up to the last sep, or "" when sep is absent.
func headBeforeLast(s, sep string) (string, bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return "", false
	}
	return s[:i], true
}

func partAt(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}
