package manifests

import (
	"fmt"

	"github.com/cloud-pak-automation/cp4i-installer/pkg/operator"
)

// Conventional namespaces that exist on every OpenShift cluster and
// need no Namespace or OperatorGroup manifest of their own.
const (
	MarketplaceNamespace = "openshift-marketplace"
	OperatorsNamespace   = "openshift-operators"
)

// DefaultNamespaces returns the conventional namespace targets.
func DefaultNamespaces() []string {
	return []string{MarketplaceNamespace, OperatorsNamespace}
}

// GenerationError reports structurally invalid input to manifest
// generation.
type GenerationError struct {
	Operator string
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Operator != "" {
		return fmt.Sprintf("generating manifests for %s: %v", e.Operator, e.Err)
	}
	return fmt.Sprintf("generating manifests: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Config contains configuration for manifest generation.
type Config struct {
	Version             string   // CP4I version, recorded on every manifest
	Namespaces          []string // Target namespaces; one CatalogSource/Subscription pair per operator per namespace
	InstallPlanApproval string   // Defaults to Automatic
	OperatorGroupName   string   // Defaults to ibm-integration-operatorgroup
}

// Generator creates deployment manifests for a set of operators.
// Generation is a pure function of its inputs: identical entries and
// namespaces always yield byte-identical manifests, so re-applying a
// regenerated set is a no-op.
type Generator struct {
	config Config
}

// NewGenerator creates a new manifest generator.
func NewGenerator(config Config) *Generator {
	if len(config.Namespaces) == 0 {
		config.Namespaces = DefaultNamespaces()
	}
	if config.InstallPlanApproval == "" {
		config.InstallPlanApproval = "Automatic"
	}
	if config.OperatorGroupName == "" {
		config.OperatorGroupName = "ibm-integration-operatorgroup"
	}

	return &Generator{config: config}
}

// standardLabels returns the label set stamped on every generated
// manifest. Deliberately free of anything random or time-based.
func (g *Generator) standardLabels() map[string]string {
	labels := map[string]string{
		"app.kubernetes.io/managed-by": "cp4i-installer",
	}
	if g.config.Version != "" {
		labels["cp4i.ibm.com/version"] = g.config.Version
	}
	return labels
}

// Generate produces the full manifest set for the operator entries.
// Every entry must already have passed extraction validation; an
// empty operator name or namespace list is a GenerationError.
func (g *Generator) Generate(set *operator.Set) (*Set, error) {
	namespaces := dedupe(g.config.Namespaces)
	if len(namespaces) == 0 {
		return nil, &GenerationError{Err: fmt.Errorf("no target namespaces")}
	}

	result := &Set{}

	for _, ns := range namespaces {
		if ns == "" {
			return nil, &GenerationError{Err: fmt.Errorf("empty namespace name")}
		}
		if ns == MarketplaceNamespace || ns == OperatorsNamespace {
			continue
		}
		result.Namespaces = append(result.Namespaces, g.newNamespace(ns))
		result.OperatorGroups = append(result.OperatorGroups, g.newOperatorGroup(ns))
	}

	for _, entry := range set.Entries() {
		if entry.Name == "" {
			return nil, &GenerationError{Operator: entry.FriendlyName, Err: fmt.Errorf("empty operator name")}
		}
		for _, ns := range namespaces {
			result.CatalogSources = append(result.CatalogSources, g.newCatalogSource(entry, ns))
			result.Subscriptions = append(result.Subscriptions, g.newSubscription(entry, ns))
		}
	}

	return result, nil
}

// newNamespace creates a namespace manifest.
func (g *Generator) newNamespace(name string) Manifest {
	ns := &Namespace{
		TypeMeta: TypeMeta{
			APIVersion: "v1",
			Kind:       "Namespace",
		},
		ObjectMeta: ObjectMeta{
			Name:   name,
			Labels: g.standardLabels(),
		},
	}
	return Manifest{Kind: ns.Kind, Name: name, Object: ns}
}

// newOperatorGroup creates the operator group scoping subscriptions
// in a non-conventional namespace to that namespace.
func (g *Generator) newOperatorGroup(namespace string) Manifest {
	og := &OperatorGroup{
		TypeMeta: TypeMeta{
			APIVersion: "operators.coreos.com/v1",
			Kind:       "OperatorGroup",
		},
		ObjectMeta: ObjectMeta{
			Name:      g.config.OperatorGroupName,
			Namespace: namespace,
			Labels:    g.standardLabels(),
		},
		Spec: OperatorGroupSpec{
			TargetNamespaces: []string{namespace},
		},
	}
	return Manifest{Kind: og.Kind, Name: og.ObjectMeta.Name, Namespace: namespace, Object: og}
}

// newCatalogSource creates the catalog source for one operator in
// one namespace. The catalog image reference is copied verbatim from
// the entry.
func (g *Generator) newCatalogSource(entry operator.Entry, namespace string) Manifest {
	cs := &CatalogSource{
		TypeMeta: TypeMeta{
			APIVersion: "operators.coreos.com/v1alpha1",
			Kind:       "CatalogSource",
		},
		ObjectMeta: ObjectMeta{
			Name:      entry.CatalogSourceName(),
			Namespace: namespace,
			Labels:    g.standardLabels(),
		},
		Spec: CatalogSourceSpec{
			SourceType:  "grpc",
			Image:       entry.CatalogImage(),
			DisplayName: entry.FriendlyName,
			Publisher:   "IBM",
		},
	}
	return Manifest{Kind: cs.Kind, Name: cs.ObjectMeta.Name, Namespace: namespace, Operator: entry.Name, Object: cs}
}

// newSubscription creates the subscription for one operator in one
// namespace. Channel and source are copied verbatim from the entry;
// the source namespace matches the subscription's own namespace so
// each (operator, namespace) pair is self-contained.
func (g *Generator) newSubscription(entry operator.Entry, namespace string) Manifest {
	sub := &Subscription{
		TypeMeta: TypeMeta{
			APIVersion: "operators.coreos.com/v1alpha1",
			Kind:       "Subscription",
		},
		ObjectMeta: ObjectMeta{
			Name:      entry.Name,
			Namespace: namespace,
			Labels:    g.standardLabels(),
		},
		Spec: SubscriptionSpec{
			Channel:             entry.Channel,
			Name:                entry.Name,
			Source:              entry.CatalogSourceName(),
			SourceNamespace:     namespace,
			InstallPlanApproval: g.config.InstallPlanApproval,
		},
	}
	return Manifest{Kind: sub.Kind, Name: sub.ObjectMeta.Name, Namespace: namespace, Operator: entry.Name, Object: sub}
}

// dedupe removes duplicate namespaces while preserving first-seen
// order.
func dedupe(namespaces []string) []string {
	seen := make(map[string]bool, len(namespaces))
	var out []string
	for _, ns := range namespaces {
		if seen[ns] {
			continue
		}
		seen[ns] = true
		out = append(out, ns)
	}
	return out
}
