package gke

func (f *Filter) node(r map[string]any) map[string]any {
	r[LocalResourceIDKey] = "k8s_node." + f.cfg.NodeName
	return r
}
