package manifests

// ObjectMeta represents standard Kubernetes object metadata.
type ObjectMeta struct {
	Name        string            `json:"name"`
	Namespace   string            `json:"namespace,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// TypeMeta represents the type information for Kubernetes resources.
type TypeMeta struct {
	APIVersion string `json:"apiVersion"`
	Kind       string `json:"kind"`
}

// Namespace represents a Kubernetes namespace.
type Namespace struct {
	TypeMeta   `json:",inline"`
	ObjectMeta `json:"metadata"`
}

// CatalogSource represents an OLM CatalogSource.
type CatalogSource struct {
	TypeMeta   `json:",inline"`
	ObjectMeta `json:"metadata"`
	Spec       CatalogSourceSpec `json:"spec"`
}

// CatalogSourceSpec defines the spec for a CatalogSource.
type CatalogSourceSpec struct {
	SourceType  string `json:"sourceType"`
	Image       string `json:"image"`
	DisplayName string `json:"displayName"`
	Publisher   string `json:"publisher"`
}

// OperatorGroup represents an OLM OperatorGroup.
type OperatorGroup struct {
	TypeMeta   `json:",inline"`
	ObjectMeta `json:"metadata"`
	Spec       OperatorGroupSpec `json:"spec"`
}

// OperatorGroupSpec defines the spec for an OperatorGroup.
type OperatorGroupSpec struct {
	TargetNamespaces []string `json:"targetNamespaces,omitempty"`
}

// Subscription represents an OLM Subscription.
type Subscription struct {
	TypeMeta   `json:",inline"`
	ObjectMeta `json:"metadata"`
	Spec       SubscriptionSpec `json:"spec"`
}

// SubscriptionSpec defines the spec for a Subscription.
type SubscriptionSpec struct {
	Channel             string `json:"channel"`
	Name                string `json:"name"`
	Source              string `json:"source"`
	SourceNamespace     string `json:"sourceNamespace"`
	InstallPlanApproval string `json:"installPlanApproval"`
}

// Manifest pairs a generated document with the identity the writer
// and applier need.
type Manifest struct {
	Kind      string // Kubernetes kind
	Name      string // metadata.name
	Namespace string // metadata.namespace
	Operator  string // owning operator, empty for cluster plumbing
	Object    any    // the document itself
}

// ID returns a stable identity string for error reporting.
func (m Manifest) ID() string {
	if m.Namespace == "" {
		return m.Kind + "/" + m.Name
	}
	return m.Kind + "/" + m.Namespace + "/" + m.Name
}

// Set holds every manifest generated for a run, grouped by kind.
type Set struct {
	Namespaces     []Manifest
	OperatorGroups []Manifest
	CatalogSources []Manifest
	Subscriptions  []Manifest
}

// Ordered returns the manifests in apply order: namespaces first,
// then catalog sources, operator groups, and finally subscriptions.
// Every CatalogSource precedes every Subscription so that source
// references resolve.
func (s *Set) Ordered() []Manifest {
	ordered := make([]Manifest, 0, s.Len())
	ordered = append(ordered, s.Namespaces...)
	ordered = append(ordered, s.CatalogSources...)
	ordered = append(ordered, s.OperatorGroups...)
	ordered = append(ordered, s.Subscriptions...)
	return ordered
}

// Len returns the total number of manifests in the set.
func (s *Set) Len() int {
	return len(s.Namespaces) + len(s.OperatorGroups) + len(s.CatalogSources) + len(s.Subscriptions)
}
