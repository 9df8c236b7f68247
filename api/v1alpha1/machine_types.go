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

// MachineSpec defines the desired identity and access path for one remotely
// reachable host.
type MachineSpec struct {
	// Hostname is the DNS name or IPv4/IPv6 literal of the remote host.
	//+kubebuilder:validation:MinLength=1
	Hostname string `json:"hostname"`

	// SSHUser is the remote account the operator authenticates as.
	//+kubebuilder:validation:MinLength=1
	SSHUser string `json:"sshUser"`

	// SSHPort is the remote SSH port. Defaults to 22.
	//+kubebuilder:validation:Minimum=1
	//+kubebuilder:validation:Maximum=65535
	//+kubebuilder:default=22
	SSHPort int32 `json:"sshPort,omitempty"`

	// SSHKeySecretRef points at a Secret holding the SSH private key under
	// the well-known field "ssh-privatekey".
	SSHKeySecretRef corev1.LocalObjectReference `json:"sshKeySecretRef"`
}

// MachineStatus defines the observed state of a Machine.
type MachineStatus struct {
	// Reachable reports whether the most recent probe succeeded.
	Reachable bool `json:"reachable,omitempty"`

	// LastReachableAt is the timestamp of the last successful probe.
	//+optional
	LastReachableAt *metav1.Time `json:"lastReachableAt,omitempty"`

	// Facts is the most recently collected hardware/OS fact map.
	//+optional
	Facts map[string]string `json:"facts,omitempty"`

	// HasConfiguration reports whether any NixosConfiguration currently
	// claims ownership of this Machine.
	HasConfiguration bool `json:"hasConfiguration,omitempty"`

	// AppliedConfiguration is the name of the NixosConfiguration that most
	// recently applied successfully, or empty if none.
	//+optional
	AppliedConfiguration string `json:"appliedConfiguration,omitempty"`

	// AppliedCommit is the 40-character hex commit hash of the last
	// successful apply.
	//+optional
	AppliedCommit string `json:"appliedCommit,omitempty"`

	// AppliedFingerprint is the hex-encoded fingerprint hash recorded at the
	// last successful apply.
	//+optional
	AppliedFingerprint string `json:"appliedFingerprint,omitempty"`

	// LastAppliedAt is the timestamp of the last successful apply.
	//+optional
	LastAppliedAt *metav1.Time `json:"lastAppliedAt,omitempty"`

	// Conditions represent the latest available observations of the
	// Machine's state.
	//+optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

//+kubebuilder:object:root=true
//+kubebuilder:subresource:status
//+kubebuilder:printcolumn:name="Hostname",type=string,JSONPath=`.spec.hostname`
//+kubebuilder:printcolumn:name="Reachable",type=boolean,JSONPath=`.status.reachable`
//+kubebuilder:printcolumn:name="Config",type=string,JSONPath=`.status.appliedConfiguration`
//+kubebuilder:printcolumn:name="Commit",type=string,JSONPath=`.status.appliedCommit`
//+kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`

// Machine is the Schema for the machines API.
type Machine struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   MachineSpec   `json:"spec,omitempty"`
	Status MachineStatus `json:"status,omitempty"`
}

//+kubebuilder:object:root=true

// MachineList contains a list of Machine.
type MachineList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Machine `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Machine{}, &MachineList{})
}
