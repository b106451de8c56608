package k8s

import "testing"

func TestNormalizeResourceType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Pod", "pods"},
		{"pods", "pods"},
		{"  Deployments ", "deployments"},
		{"ingresses", "ingresses"},
		{"Ingress", "ingresses"},
		{"ingressclass", "ingressclasses"},
		{"StorageClass", "storageclasses"},
		{"priorityclass", "priorityclasses"},
		{"Namespace", "namespaces"},
		{"", ""},
		{"widget", "widgets"},
	}
	for _, tt := range tests {
		if got := NormalizeResourceType(tt.in); got != tt.want {
			t.Errorf("NormalizeResourceType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGVRForType(t *testing.T) {
	gvr, err := GVRForType("deployments")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gvr.Group != "apps" || gvr.Version != "v1" || gvr.Resource != "deployments" {
		t.Errorf("unexpected GVR: %+v", gvr)
	}

	if _, err := GVRForType("widgets"); err == nil {
		t.Error("unknown type must return an error")
	}
}

func TestIsClusterScoped(t *testing.T) {
	for _, rt := range []string{"nodes", "namespaces", "customresourcedefinitions", "priorityclasses"} {
		if !IsClusterScoped(rt) {
			t.Errorf("%s should be cluster scoped", rt)
		}
	}
	for _, rt := range []string{"pods", "secrets", "ingresses", "widgets"} {
		if IsClusterScoped(rt) {
			t.Errorf("%s should be namespaced", rt)
		}
	}
}

func TestKnownResourceTypes(t *testing.T) {
	types := KnownResourceTypes()
	if len(types) != len(gvrRegistry) {
		t.Fatalf("expected %d types, got %d", len(gvrRegistry), len(types))
	}
	for _, rt := range types {
		if _, err := GVRForType(rt); err != nil {
			t.Errorf("registered type %q failed lookup: %v", rt, err)
		}
	}
}
