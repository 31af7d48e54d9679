package iot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/picklr-io/ggprov/internal/ir"
)

// Errors every Client implementation maps its backend errors onto.
var (
	ErrNotFound      = ir.ErrNotFound
	ErrAlreadyExists = ir.ErrAlreadyExists
	ErrConflict      = ir.ErrConflict
)

// Client is the external resource client the kinds reconcile against.
// It is injected; authentication and transport are the implementation's
// concern.
type Client interface {
	Things
	Certificates
	Policies
	Groups
	Roles
	Jobs
	Secrets
	Endpoints
	Account
}

type Things interface {
	CreateThing(ctx context.Context, name string) (Thing, error)
	DescribeThing(ctx context.Context, name string) (Thing, error)
	DeleteThing(ctx context.Context, name string) error
	AttachThingPrincipal(ctx context.Context, thing, principal string) error
	DetachThingPrincipal(ctx context.Context, thing, principal string) error
	ListThingPrincipals(ctx context.Context, thing string) ([]string, error)
	ListPrincipalThings(ctx context.Context, principal string) ([]string, error)
}

type Certificates interface {
	CreateKeysAndCertificate(ctx context.Context) (Certificate, error)
	DescribeCertificate(ctx context.Context, id string) (Certificate, error)
	UpdateCertificateStatus(ctx context.Context, id string, status CertificateStatus) error
	DeleteCertificate(ctx context.Context, id string) error
}

type Policies interface {
	CreatePolicy(ctx context.Context, name, document string) (Policy, error)
	GetPolicy(ctx context.Context, name string) (Policy, error)
	DeletePolicy(ctx context.Context, name string) error
	CreatePolicyVersion(ctx context.Context, name, document string, setDefault bool) (PolicyVersion, error)
	ListPolicyVersions(ctx context.Context, name string) ([]PolicyVersion, error)
	DeletePolicyVersion(ctx context.Context, name, versionID string) error
	AttachPolicy(ctx context.Context, policy, target string) error
	DetachPolicy(ctx context.Context, policy, target string) error
	ListAttachedPolicies(ctx context.Context, target string) ([]string, error)
}

type Groups interface {
	CreateThingGroup(ctx context.Context, name, description string) (ThingGroup, error)
	DescribeThingGroup(ctx context.Context, name string) (ThingGroup, error)
	ListThingGroups(ctx context.Context) ([]string, error)
	AddThingToGroup(ctx context.Context, group, thingArn string) error
	DeleteThingGroup(ctx context.Context, name string) error
}

type Roles interface {
	CreateRole(ctx context.Context, name, trustPolicy string) (Role, error)
	GetRole(ctx context.Context, name string) (Role, error)
	AttachRolePolicy(ctx context.Context, role, policyArn string) error
	CreateRoleAlias(ctx context.Context, alias, roleArn string, durationSeconds int) (RoleAlias, error)
	DescribeRoleAlias(ctx context.Context, alias string) (RoleAlias, error)
	DeleteRoleAlias(ctx context.Context, alias string) error
}

type Jobs interface {
	CreateJob(ctx context.Context, spec JobSpec) (Job, error)
	DescribeJob(ctx context.Context, id string) (Job, error)
	CancelJob(ctx context.Context, id string, force bool) error
}

// Secrets stores credential material. Each call returns or takes the
// location (parameter or secret name) the material is kept under.
type Secrets interface {
	PutSecret(ctx context.Context, store SecretStore, name, value string) (string, error)
	LookupSecret(ctx context.Context, store SecretStore, name string) (string, error)
	DeleteSecret(ctx context.Context, store SecretStore, name string) error
}

type Endpoints interface {
	DescribeEndpoint(ctx context.Context, endpointType EndpointType) (string, error)
}

type Account interface {
	AccountID(ctx context.Context) (string, error)
	Region() string
}

type Thing struct {
	Name string
	ARN  string
}

type CertificateStatus string

const (
	CertificateActive   CertificateStatus = "ACTIVE"
	CertificateInactive CertificateStatus = "INACTIVE"
	CertificateRevoked  CertificateStatus = "REVOKED"
)

// Certificate is an X.509 device certificate. PEM and PrivateKey are only
// populated by CreateKeysAndCertificate; the key is never retrievable later.
type Certificate struct {
	ID         string
	ARN        string
	Status     CertificateStatus
	PEM        string
	PrivateKey string
}

type Policy struct {
	Name             string
	ARN              string
	Document         string
	DefaultVersionID string
}

type PolicyVersion struct {
	ID        string
	IsDefault bool
	CreatedAt time.Time
}

type ThingGroup struct {
	Name string
	ARN  string
	ID   string
}

type Role struct {
	Name string
	ARN  string
}

type RoleAlias struct {
	Name            string
	ARN             string
	RoleARN         string
	DurationSeconds int
}

type TargetSelection string

const (
	TargetContinuous TargetSelection = "CONTINUOUS"
	TargetSnapshot   TargetSelection = "SNAPSHOT"
)

type JobSpec struct {
	ID              string
	Targets         []string
	Document        string
	Description     string
	TargetSelection TargetSelection
}

type Job struct {
	ID     string
	ARN    string
	Status string
}

// Job statuses as reported by DescribeJob.
const (
	JobScheduled          = "SCHEDULED"
	JobInProgress         = "IN_PROGRESS"
	JobCanceled           = "CANCELED"
	JobCompleted          = "COMPLETED"
	JobDeletionInProgress = "DELETION_IN_PROGRESS"
)

// Active reports whether the job is still rolling out.
func (j Job) Active() bool {
	return j.Status == JobInProgress || j.Status == JobScheduled
}

// SecretStore selects where device credentials are kept.
type SecretStore string

const (
	StoreParameters     SecretStore = "ssm"
	StoreSecretsManager SecretStore = "secretsmanager"
)

// ParseSecretStore accepts "ssm", "secretsmanager" or "" (parameters).
func ParseSecretStore(s string) (SecretStore, error) {
	switch SecretStore(strings.ToLower(strings.TrimSpace(s))) {
	case "", StoreParameters:
		return StoreParameters, nil
	case StoreSecretsManager:
		return StoreSecretsManager, nil
	}
	return "", fmt.Errorf("unknown secret store %q", s)
}

type EndpointType string

const (
	EndpointData               EndpointType = "iot:Data-ATS"
	EndpointCredentialProvider EndpointType = "iot:CredentialProvider"
	EndpointJobs               EndpointType = "iot:Jobs"
)

// CertificateIDFromARN returns the id at the end of a certificate ARN
// ("arn:aws:iot:<region>:<account>:cert/<id>"), or "" for other principals.
func CertificateIDFromARN(arn string) string {
	i := strings.LastIndex(arn, ":cert/")
	if i < 0 {
		return ""
	}
	return arn[i+len(":cert/"):]
}
