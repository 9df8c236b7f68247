/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1alpha1

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// AdditionalFileSource selects where the content of one injected file comes
// from. Exactly one of Inline, SecretRef or HardwareFacts must be set.
type AdditionalFileSource struct {
	// Inline is literal file content.
	//+optional
	Inline string `json:"inline,omitempty"`

	// SecretRef reads the file content from a key in a Secret.
	//+optional
	SecretRef *SecretKeySelector `json:"secretRef,omitempty"`

	// HardwareFacts, when true, renders the Machine's collected facts map
	// instead of a literal or secret source.
	//+optional
	HardwareFacts bool `json:"hardwareFacts,omitempty"`
}

// SecretKeySelector selects one key of a Secret in the NixosConfiguration's
// namespace.
type SecretKeySelector struct {
	corev1.LocalObjectReference `json:",inline"`
	Key                         string `json:"key"`
}

// AdditionalFile describes one file to inject into the resolved
// configuration checkout before building.
type AdditionalFile struct {
	// Path is the destination path, relative to the root of the git
	// checkout (not to ConfigurationSubdir).
	//+kubebuilder:validation:MinLength=1
	Path string `json:"path"`

	// Source describes where the content comes from.
	Source AdditionalFileSource `json:"source"`

	// Mode is the POSIX file mode to apply, e.g. "0644".
	//+optional
	Mode string `json:"mode,omitempty"`
}

// GitAuth references the credentials used to clone and fetch GitRepo.
type GitAuth struct {
	// SSHKeySecretRef selects a Secret with an "ssh-privatekey" field.
	//+optional
	SSHKeySecretRef *corev1.LocalObjectReference `json:"sshKeySecretRef,omitempty"`

	// TokenSecretRef selects a Secret with a "token" field, used as an
	// HTTPS bearer credential.
	//+optional
	TokenSecretRef *corev1.LocalObjectReference `json:"tokenSecretRef,omitempty"`
}

// OnRemoveFlake describes the flake target to apply when a NixosConfiguration
// is deleted, restoring a machine to a baseline state.
type OnRemoveFlake struct {
	// Flake is the flake attribute path (e.g. "nixosConfigurations.baseline")
	// applied on teardown, taken from the same GitRepo, GitRef and
	// ConfigurationSubdir as the main configuration.
	//+optional
	Flake string `json:"flake,omitempty"`

	// SkipOnUnreachable, when true (the default), treats an unreachable
	// Machine as teardown-complete instead of blocking finalizer removal.
	//+kubebuilder:default=true
	SkipOnUnreachable bool `json:"skipOnUnreachable,omitempty"`
}

// NixosConfigurationSpec defines the desired system configuration to build
// and apply to a referenced Machine.
type NixosConfigurationSpec struct {
	// MachineRef names the Machine this configuration applies to.
	MachineRef corev1.LocalObjectReference `json:"machineRef"`

	// GitRepo is the clone URL of the system-config repository.
	//+kubebuilder:validation:MinLength=1
	GitRepo string `json:"gitRepo"`

	// GitRef is the branch, tag or commit to resolve. Defaults to "HEAD".
	//+kubebuilder:default="HEAD"
	GitRef string `json:"gitRef,omitempty"`

	// GitAuth holds the credentials used to access GitRepo.
	//+optional
	GitAuth GitAuth `json:"gitAuth,omitempty"`

	// Flake is the flake attribute path to build, e.g.
	// "nixosConfigurations.host"; it is appended after "#" to the flake
	// directory of the checkout.
	//+kubebuilder:validation:MinLength=1
	Flake string `json:"flake"`

	// ConfigurationSubdir is the subdirectory of the checkout that forms the
	// build root. Defaults to the repository root.
	//+optional
	ConfigurationSubdir string `json:"configurationSubdir,omitempty"`

	// FullInstall selects bootstrap mode (partition/format/install) instead
	// of the default switch-activation mode.
	//+optional
	FullInstall bool `json:"fullInstall,omitempty"`

	// AdditionalFiles are injected into the checkout, in order, before the
	// build runs.
	//+optional
	AdditionalFiles []AdditionalFile `json:"additionalFiles,omitempty"`

	// OnRemoveFlake controls what is applied when this resource is deleted.
	//+optional
	OnRemoveFlake OnRemoveFlake `json:"onRemoveFlake,omitempty"`

	// PollingInterval overrides the default reconcile polling cadence for
	// this configuration, e.g. "5m".
	//+optional
	PollingInterval string `json:"pollingInterval,omitempty"`

	// Paused suspends reconciliation without releasing ownership of the
	// Machine.
	//+optional
	Paused bool `json:"paused,omitempty"`
}

// NixosConfigurationPhase is the coarse reconcile state of a
// NixosConfiguration.
type NixosConfigurationPhase string

const (
	PhasePending   NixosConfigurationPhase = "Pending"
	PhaseResolving NixosConfigurationPhase = "Resolving"
	PhaseBuilding  NixosConfigurationPhase = "Building"
	PhaseApplying  NixosConfigurationPhase = "Applying"
	PhaseApplied   NixosConfigurationPhase = "Applied"
	PhaseFailed    NixosConfigurationPhase = "Failed"
	PhaseDeleting  NixosConfigurationPhase = "Deleting"
)

// NixosConfigurationStatus defines the observed state of a
// NixosConfiguration.
type NixosConfigurationStatus struct {
	// Phase is the current position in the reconcile state machine.
	//+optional
	Phase NixosConfigurationPhase `json:"phase,omitempty"`

	// ObservedGeneration is the generation most recently acted on.
	//+optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`

	// ResolvedCommit is the 40-character hex commit hash GitRef last
	// resolved to.
	//+optional
	ResolvedCommit string `json:"resolvedCommit,omitempty"`

	// AppliedCommit is the commit hash of the last successfully applied
	// configuration.
	//+optional
	AppliedCommit string `json:"appliedCommit,omitempty"`

	// AppliedFingerprint is the fingerprint hash of the last successfully
	// applied configuration.
	//+optional
	AppliedFingerprint string `json:"appliedFingerprint,omitempty"`

	// LastError is a human-readable description of the most recent
	// reconcile failure, cleared on success.
	//+optional
	LastError string `json:"lastError,omitempty"`

	// LastTransitionAt is the timestamp of the last Phase change.
	//+optional
	LastTransitionAt *metav1.Time `json:"lastTransitionAt,omitempty"`

	// Conditions represent the latest available observations of this
	// resource's state.
	//+optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

//+kubebuilder:object:root=true
//+kubebuilder:subresource:status
//+kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
//+kubebuilder:printcolumn:name="Machine",type=string,JSONPath=`.spec.machineRef.name`
//+kubebuilder:printcolumn:name="Commit",type=string,JSONPath=`.status.appliedCommit`
//+kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`

// NixosConfiguration is the Schema for the nixosconfigurations API.
type NixosConfiguration struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   NixosConfigurationSpec   `json:"spec,omitempty"`
	Status NixosConfigurationStatus `json:"status,omitempty"`
}

//+kubebuilder:object:root=true

// NixosConfigurationList contains a list of NixosConfiguration.
type NixosConfigurationList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []NixosConfiguration `json:"items"`
}

func init() {
	SchemeBuilder.Register(&NixosConfiguration{}, &NixosConfigurationList{})
}
