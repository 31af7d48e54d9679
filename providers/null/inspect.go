package null

import (
	"fmt"

	"github.com/picklr-io/ggprov/providers/iot"
)

// The accessors below read the in-memory state without touching the call log.

func (c *Client) HasThing(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.things[name]
	return ok
}

func (c *Client) Certificate(id string) (iot.Certificate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cert, ok := c.certs[id]
	return cert, ok
}

func (c *Client) CertificateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.certs)
}

func (c *Client) Policy(name string) (iot.Policy, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.policies[name]
	if !ok {
		return iot.Policy{}, 0, false
	}
	return p.Policy, len(p.versions), true
}

func (c *Client) ThingPrincipals(thing string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.thingPrincipals[thing]...)
}

func (c *Client) AttachedPolicies(target string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.attached[target]...)
}

func (c *Client) Group(name string) (iot.ThingGroup, []string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.groups[name]
	return g, append([]string(nil), c.members[name]...), ok
}

func (c *Client) Role(name string) (iot.Role, []string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.roles[name]
	return r, append([]string(nil), c.rolePolicies[name]...), ok
}

func (c *Client) RoleAlias(name string) (iot.RoleAlias, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.aliases[name]
	return a, ok
}

func (c *Client) Job(id string) (iot.Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[id]
	return j, ok
}

func (c *Client) Secret(store iot.SecretStore, name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.secrets[store][name]
	return v, ok
}

// SetPolicyVersions seeds extra non-default versions of an existing policy.
func (c *Client) SetPolicyVersions(name string, extra int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.policies[name]
	if !ok {
		return
	}
	for i := 0; i < extra; i++ {
		p.next++
		id := fmt.Sprintf("%d", p.next)
		p.versions = append(p.versions, iot.PolicyVersion{ID: id, CreatedAt: c.clock()})
		p.docs[id] = p.Document
	}
}
