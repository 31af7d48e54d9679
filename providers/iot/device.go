package iot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/picklr-io/ggprov/internal/engine"
	"github.com/picklr-io/ggprov/internal/ir"
	"github.com/picklr-io/ggprov/internal/logging"
)

// DefaultRoleAliasName is bound into the policy template when the event
// does not name a role alias.
const DefaultRoleAliasName = "GreengrassV2TokenExchangeRoleAlias"

// DefaultDevicePolicy is the policy template for a Greengrass core device.
// IoT policy variables such as ${iot:Connection.Thing.ThingName} are not
// template bindings and survive rendering untouched.
const DefaultDevicePolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Action": ["iot:Connect"],
      "Resource": "arn:aws:iot:${Region}:${AccountId}:client/${ThingName}*"
    },
    {
      "Effect": "Allow",
      "Action": ["iot:Publish", "iot:Receive"],
      "Resource": "arn:aws:iot:${Region}:${AccountId}:topic/$aws/things/${ThingName}*/*"
    },
    {
      "Effect": "Allow",
      "Action": ["iot:Subscribe"],
      "Resource": "arn:aws:iot:${Region}:${AccountId}:topicfilter/$aws/things/${ThingName}*/*"
    },
    {
      "Effect": "Allow",
      "Action": ["iot:GetThingShadow", "iot:UpdateThingShadow", "iot:DeleteThingShadow"],
      "Resource": "arn:aws:iot:${Region}:${AccountId}:thing/${iot:Connection.Thing.ThingName}"
    },
    {
      "Effect": "Allow",
      "Action": ["iot:AssumeRoleWithCertificate"],
      "Resource": "arn:aws:iot:${Region}:${AccountId}:rolealias/${RoleAliasName}"
    },
    {
      "Effect": "Allow",
      "Action": ["greengrass:*"],
      "Resource": "*"
    }
  ]
}`

var errPolicyUnknown = errors.New("policy name unknown: event carries neither PolicyName nor ThingName")

// IoT keeps at most five versions of a policy.
const maxPolicyVersions = 5

const (
	keyThingName   = "thing.name"
	keyThingArn    = "thing.arn"
	keyCertID      = "cert.id"
	keyCertArn     = "cert.arn"
	keyCertPEM     = "cert.pem"
	keyCertKey     = "cert.key"
	keyCertReused  = "cert.reused"
	keyPolicyDoc   = "policy.document"
	keyPolicyName  = "policy.name"
	keyPolicyArn   = "policy.arn"
	keyPEMLocation = "secret.pem"
	keyKeyLocation = "secret.key"
)

// Relationship kinds discovered during teardown.
const (
	relPrincipal     = "thing-principal"
	relCertPolicy    = "certificate-policy"
	relPolicyVersion = "policy-version"
)

// DeviceIdentity is a registered thing with its certificate, its policy and
// the stored credential material a device needs to connect.
type DeviceIdentity struct {
	client Client
	opts   Options
}

func NewDeviceIdentity(c Client, opts Options) *DeviceIdentity {
	return &DeviceIdentity{client: c, opts: opts}
}

type deviceConfig struct {
	ThingName          string
	PolicyName         string
	PolicyTemplate     string
	Bindings           map[string]string
	RoleAliasName      string
	AdditionalPolicies []string
	Prefix             string
	Store              SecretStore
}

func (o Options) parseDevice(p ir.Properties) (deviceConfig, error) {
	thing := strings.TrimSpace(p.String("ThingName"))
	cfg := deviceConfig{
		ThingName:          thing,
		PolicyName:         p.String("PolicyName"),
		RoleAliasName:      p.StringOr("RoleAliasName", DefaultRoleAliasName),
		AdditionalPolicies: p.Strings("AdditionalPolicyNames"),
		Prefix:             strings.TrimSuffix(p.StringOr("ParameterPrefix", "/ggprov/"+thing), "/"),
	}

	if cfg.PolicyName == "" && thing != "" {
		cfg.PolicyName = thing + "-policy"
	}

	var errs []error
	doc, err := p.Document("PolicyDocument")
	errs = append(errs, err)
	if doc == "" {
		doc = DefaultDevicePolicy
	}
	cfg.PolicyTemplate = doc

	cfg.Bindings, err = p.StringMap("PolicyBindings")
	errs = append(errs, err)

	store := p.String("SecretStore")
	if store == "" {
		store = string(o.SecretStore)
	}
	cfg.Store, err = ParseSecretStore(store)
	errs = append(errs, err)

	return cfg, errors.Join(errs...)
}

func (c deviceConfig) pemName(certID string) string {
	return c.Prefix + "/" + certID + "/certificate.pem"
}

func (c deviceConfig) keyName(certID string) string {
	return c.Prefix + "/" + certID + "/private.key"
}

func (k *DeviceIdentity) Name() string { return KindDeviceIdentity }

func (k *DeviceIdentity) Validate(props ir.Properties) error {
	if _, err := props.Require("ThingName"); err != nil {
		return err
	}
	_, err := k.opts.parseDevice(props)
	return err
}

func (k *DeviceIdentity) CreateSteps(ev *ir.Event) []engine.Step {
	cfg, _ := k.opts.parseDevice(ev.Properties)
	c := k.client

	additional := k.opts.step("attach-additional-policies", func(ctx context.Context, sc *engine.Scratch) error {
		for _, name := range cfg.AdditionalPolicies {
			if err := c.AttachPolicy(ctx, name, sc.Get(keyCertArn)); err != nil {
				return fmt.Errorf("failed to attach policy %s: %w", name, err)
			}
		}
		return nil
	})
	additional.Skip = func(*engine.Scratch) bool { return len(cfg.AdditionalPolicies) == 0 }

	store := k.opts.step("store-credentials", func(ctx context.Context, sc *engine.Scratch) error {
		id := sc.Get(keyCertID)
		pem, err := c.PutSecret(ctx, cfg.Store, cfg.pemName(id), sc.Get(keyCertPEM))
		if err != nil {
			return fmt.Errorf("failed to store certificate: %w", err)
		}
		key, err := c.PutSecret(ctx, cfg.Store, cfg.keyName(id), sc.Get(keyCertKey))
		if err != nil {
			return fmt.Errorf("failed to store private key: %w", err)
		}
		sc.Set(keyPEMLocation, pem)
		sc.Set(keyKeyLocation, key)
		return nil
	})
	store.Skip = func(sc *engine.Scratch) bool { return sc.Has(keyCertReused) }

	return []engine.Step{
		k.opts.step("create-thing", func(ctx context.Context, sc *engine.Scratch) error {
			thing, err := c.CreateThing(ctx, cfg.ThingName)
			if errors.Is(err, ErrAlreadyExists) {
				thing, err = c.DescribeThing(ctx, cfg.ThingName)
			}
			if err != nil {
				return fmt.Errorf("failed to create thing %s: %w", cfg.ThingName, err)
			}
			sc.Set(keyThingName, thing.Name)
			sc.Set(keyThingArn, thing.ARN)
			return nil
		}),
		k.opts.step("issue-certificate", func(ctx context.Context, sc *engine.Scratch) error {
			return k.issueCertificate(ctx, cfg, sc)
		}),
		k.opts.step("render-policy", func(ctx context.Context, sc *engine.Scratch) error {
			return k.renderPolicy(ctx, cfg, sc)
		}),
		k.opts.step("create-policy", func(ctx context.Context, sc *engine.Scratch) error {
			return k.createPolicy(ctx, cfg.PolicyName, sc.Get(keyPolicyDoc), sc)
		}),
		k.opts.step("attach-policy", func(ctx context.Context, sc *engine.Scratch) error {
			return c.AttachPolicy(ctx, cfg.PolicyName, sc.Get(keyCertArn))
		}),
		k.opts.step("attach-thing-principal", func(ctx context.Context, sc *engine.Scratch) error {
			return c.AttachThingPrincipal(ctx, cfg.ThingName, sc.Get(keyCertArn))
		}),
		additional,
		store,
	}
}

// issueCertificate reuses a certificate already attached to the thing when
// it is active and its material is in the store. Otherwise it creates a new
// key pair and certificate.
func (k *DeviceIdentity) issueCertificate(ctx context.Context, cfg deviceConfig, sc *engine.Scratch) error {
	if cert, pem, key, ok := k.reusableCertificate(ctx, cfg); ok {
		sc.Set(keyCertID, cert.ID)
		sc.Set(keyCertArn, cert.ARN)
		sc.Set(keyCertReused, "true")
		sc.Set(keyPEMLocation, pem)
		sc.Set(keyKeyLocation, key)
		logging.Info("reusing device certificate", "thing", cfg.ThingName, "certificate", cert.ID)
		return nil
	}

	cert, err := k.client.CreateKeysAndCertificate(ctx)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}
	sc.Set(keyCertID, cert.ID)
	sc.Set(keyCertArn, cert.ARN)
	sc.Set(keyCertPEM, cert.PEM)
	sc.Set(keyCertKey, cert.PrivateKey)
	return nil
}

// reusableCertificate returns an attached active certificate together with
// the locations of its stored material.
func (k *DeviceIdentity) reusableCertificate(ctx context.Context, cfg deviceConfig) (Certificate, string, string, bool) {
	principals, err := k.client.ListThingPrincipals(ctx, cfg.ThingName)
	if err != nil {
		logging.Debug("cannot list thing principals", "thing", cfg.ThingName, "error", err)
		return Certificate{}, "", "", false
	}
	for _, arn := range principals {
		id := CertificateIDFromARN(arn)
		if id == "" {
			continue
		}
		cert, err := k.client.DescribeCertificate(ctx, id)
		if err != nil || cert.Status != CertificateActive {
			continue
		}
		pem, err := k.client.LookupSecret(ctx, cfg.Store, cfg.pemName(id))
		if err != nil {
			continue
		}
		key, err := k.client.LookupSecret(ctx, cfg.Store, cfg.keyName(id))
		if err != nil {
			continue
		}
		if cert.ARN == "" {
			cert.ARN = arn
		}
		return cert, pem, key, true
	}
	return Certificate{}, "", "", false
}

func (k *DeviceIdentity) renderPolicy(ctx context.Context, cfg deviceConfig, sc *engine.Scratch) error {
	account, err := k.client.AccountID(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve account id: %w", err)
	}

	bindings := map[string]string{
		"ThingName":     cfg.ThingName,
		"PolicyName":    cfg.PolicyName,
		"RoleAliasName": cfg.RoleAliasName,
		"CertificateId": sc.Get(keyCertID),
		"Region":        k.client.Region(),
		"AccountId":     account,
	}
	for name, v := range cfg.Bindings {
		bindings[name] = v
	}

	doc, err := engine.RenderDocument(cfg.PolicyTemplate, bindings, "ThingName", "Region", "AccountId")
	if err != nil {
		return fmt.Errorf("failed to render policy %s: %w", cfg.PolicyName, err)
	}
	sc.Set(keyPolicyDoc, doc)
	return nil
}

// createPolicy creates the policy, or converges an existing one onto doc by
// adding a new default version.
func (k *DeviceIdentity) createPolicy(ctx context.Context, name, doc string, sc *engine.Scratch) error {
	policy, err := k.client.CreatePolicy(ctx, name, doc)
	if errors.Is(err, ErrAlreadyExists) {
		policy, err = k.client.GetPolicy(ctx, name)
		if err == nil && !engine.EquivalentJSON(policy.Document, doc) {
			err = k.replacePolicyDocument(ctx, name, doc)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to create policy %s: %w", name, err)
	}
	sc.Set(keyPolicyName, name)
	sc.Set(keyPolicyArn, policy.ARN)
	return nil
}

func (k *DeviceIdentity) replacePolicyDocument(ctx context.Context, name, doc string) error {
	versions, err := k.client.ListPolicyVersions(ctx, name)
	if err != nil {
		return err
	}
	if len(versions) >= maxPolicyVersions {
		if oldest, ok := oldestNonDefault(versions); ok {
			if err := k.client.DeletePolicyVersion(ctx, name, oldest.ID); err != nil {
				return fmt.Errorf("failed to prune policy version %s: %w", oldest.ID, err)
			}
		}
	}
	_, err = k.client.CreatePolicyVersion(ctx, name, doc, true)
	return err
}

func oldestNonDefault(versions []PolicyVersion) (PolicyVersion, bool) {
	var candidates []PolicyVersion
	for _, v := range versions {
		if !v.IsDefault {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return PolicyVersion{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	return candidates[0], true
}

func (k *DeviceIdentity) Identity(sc *engine.Scratch) string {
	return sc.Get(keyCertID)
}

func (k *DeviceIdentity) Outputs(ctx context.Context, ev *ir.Event, sc *engine.Scratch) (map[string]string, error) {
	ctx, cancel := engine.WithTimeout(ctx, k.opts.CallTimeout)
	defer cancel()

	data, err := k.client.DescribeEndpoint(ctx, EndpointData)
	if err != nil {
		return nil, fmt.Errorf("failed to describe data endpoint: %w", err)
	}
	creds, err := k.client.DescribeEndpoint(ctx, EndpointCredentialProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to describe credential provider endpoint: %w", err)
	}
	jobs := engine.Optional(ctx, "JobsEndpointAddress", func(ctx context.Context) (string, error) {
		return k.client.DescribeEndpoint(ctx, EndpointJobs)
	})

	return map[string]string{
		"ThingName":                         sc.Get(keyThingName),
		"ThingArn":                          sc.Get(keyThingArn),
		"CertificateId":                     sc.Get(keyCertID),
		"CertificateArn":                    sc.Get(keyCertArn),
		"PolicyName":                        sc.Get(keyPolicyName),
		"CertificatePemLocation":            sc.Get(keyPEMLocation),
		"PrivateKeyLocation":                sc.Get(keyKeyLocation),
		"DataEndpointAddress":               data,
		"CredentialProviderEndpointAddress": creds,
		"JobsEndpointAddress":               jobs,
	}, nil
}

// Teardown releases the stored material, discovers what is still attached,
// detaches every edge, deletes the policy and certificate, and deletes the
// thing last.
func (k *DeviceIdentity) Teardown(ev *ir.Event) engine.Teardown {
	cfg, _ := k.opts.parseDevice(ev.Properties)
	certID := ev.PriorIdentity
	c := k.client

	primary := k.opts.step("delete-thing", func(ctx context.Context, sc *engine.Scratch) error {
		thing := sc.Get(keyThingName)
		if thing == "" {
			return fmt.Errorf("thing name unknown for certificate %s", certID)
		}
		return c.DeleteThing(ctx, thing)
	})

	return engine.Teardown{
		Release: []engine.Step{
			k.opts.step("delete-stored-credentials", func(ctx context.Context, sc *engine.Scratch) error {
				return errors.Join(
					ignoreNotFound(c.DeleteSecret(ctx, cfg.Store, cfg.pemName(certID))),
					ignoreNotFound(c.DeleteSecret(ctx, cfg.Store, cfg.keyName(certID))),
				)
			}),
		},
		Discover: []engine.Step{
			k.opts.step("describe-certificate", func(ctx context.Context, sc *engine.Scratch) error {
				cert, err := c.DescribeCertificate(ctx, certID)
				if err != nil {
					return err
				}
				sc.Set(keyCertArn, cert.ARN)
				return nil
			}),
			k.opts.step("list-thing-principals", func(ctx context.Context, sc *engine.Scratch) error {
				return k.discoverPrincipals(ctx, cfg, certID, sc)
			}),
			k.opts.step("list-certificate-policies", func(ctx context.Context, sc *engine.Scratch) error {
				arn := sc.Get(keyCertArn)
				if arn == "" {
					return fmt.Errorf("certificate arn unknown for %s", certID)
				}
				policies, err := c.ListAttachedPolicies(ctx, arn)
				if err != nil {
					return err
				}
				for _, p := range policies {
					sc.Relate(engine.Relationship{Kind: relCertPolicy, From: arn, To: p, Direction: engine.AttachedTo})
				}
				return nil
			}),
			k.opts.step("list-policy-versions", func(ctx context.Context, sc *engine.Scratch) error {
				if cfg.PolicyName == "" {
					return errPolicyUnknown
				}
				versions, err := c.ListPolicyVersions(ctx, cfg.PolicyName)
				if err != nil {
					return err
				}
				for _, v := range versions {
					if !v.IsDefault {
						sc.Relate(engine.Relationship{Kind: relPolicyVersion, From: cfg.PolicyName, To: v.ID, Direction: engine.Owns})
					}
				}
				return nil
			}),
		},
		Detach: []engine.Step{
			k.opts.step("detach-thing-principals", func(ctx context.Context, sc *engine.Scratch) error {
				var errs []error
				for _, rel := range sc.Relations(relPrincipal) {
					errs = append(errs, ignoreNotFound(c.DetachThingPrincipal(ctx, rel.From, rel.To)))
				}
				return errors.Join(errs...)
			}),
			k.opts.step("detach-certificate-policies", func(ctx context.Context, sc *engine.Scratch) error {
				var errs []error
				for _, rel := range sc.Relations(relCertPolicy) {
					errs = append(errs, ignoreNotFound(c.DetachPolicy(ctx, rel.To, rel.From)))
				}
				return errors.Join(errs...)
			}),
		},
		Owned: []engine.Step{
			k.opts.step("prune-policy-versions", func(ctx context.Context, sc *engine.Scratch) error {
				var errs []error
				for _, rel := range sc.Relations(relPolicyVersion) {
					errs = append(errs, ignoreNotFound(c.DeletePolicyVersion(ctx, rel.From, rel.To)))
				}
				return errors.Join(errs...)
			}),
			k.opts.step("delete-policy", func(ctx context.Context, sc *engine.Scratch) error {
				if cfg.PolicyName == "" {
					return errPolicyUnknown
				}
				return c.DeletePolicy(ctx, cfg.PolicyName)
			}),
			k.opts.step("revoke-certificate", func(ctx context.Context, sc *engine.Scratch) error {
				return c.UpdateCertificateStatus(ctx, certID, CertificateInactive)
			}),
			// Detaching a thing principal is asynchronous, so the delete is
			// refused until the detach has propagated.
			{Name: "delete-certificate", Action: func(ctx context.Context, sc *engine.Scratch) error {
				return k.opts.retryOn(ctx, ErrConflict, func(ctx context.Context) error {
					return c.DeleteCertificate(ctx, certID)
				})
			}},
		},
		Primary: &primary,
	}
}

// discoverPrincipals records every principal attached to the thing. When the
// event carries no thing name it is looked up from the certificate.
func (k *DeviceIdentity) discoverPrincipals(ctx context.Context, cfg deviceConfig, certID string, sc *engine.Scratch) error {
	thing := cfg.ThingName
	if thing == "" {
		arn := sc.Get(keyCertArn)
		if arn == "" {
			return fmt.Errorf("neither thing name nor certificate arn known for %s", certID)
		}
		things, err := k.client.ListPrincipalThings(ctx, arn)
		if err != nil {
			return err
		}
		if len(things) == 0 {
			return fmt.Errorf("no thing attached to certificate %s", certID)
		}
		thing = things[0]
	}
	sc.Set(keyThingName, thing)

	principals, err := k.client.ListThingPrincipals(ctx, thing)
	if err != nil {
		return err
	}
	for _, p := range principals {
		if !sc.Has(keyCertArn) && CertificateIDFromARN(p) == certID {
			sc.Set(keyCertArn, p)
		}
		sc.Relate(engine.Relationship{Kind: relPrincipal, From: thing, To: p, Direction: engine.AttachedTo})
	}
	return nil
}
