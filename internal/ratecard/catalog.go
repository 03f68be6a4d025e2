package ratecard

import (
	"errors"
	"fmt"
	"strings"
)

type ServiceSpec struct {
	Name  string `yaml:"name"`
	Hours Amount `yaml:"hours"`
}

type DomainSpec struct {
	Name     string        `yaml:"name"`
	Services []ServiceSpec `yaml:"services"`
}

// CatalogSpec is the on-disk shape of the catalog.
type CatalogSpec struct {
	Domains []DomainSpec `yaml:"domains"`
}

// Catalog maps domain -> service -> expected effort in hours. It is built once
// and never mutated, so concurrent readers need no locking.
type Catalog struct {
	domains []DomainSpec
	effort  map[string]map[string]Amount
}

func NewCatalog(spec CatalogSpec) (*Catalog, error) {
	c := &Catalog{effort: map[string]map[string]Amount{}}
	var errs []error
	for _, d := range spec.Domains {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			errs = append(errs, errors.New("domain with empty name"))
			continue
		}
		if _, dup := c.effort[name]; dup {
			errs = append(errs, fmt.Errorf("duplicate domain %q", name))
			continue
		}
		services := make([]ServiceSpec, 0, len(d.Services))
		byName := map[string]Amount{}
		for _, s := range d.Services {
			sname := strings.TrimSpace(s.Name)
			if sname == "" {
				errs = append(errs, fmt.Errorf("domain %q: service with empty name", name))
				continue
			}
			if _, dup := byName[sname]; dup {
				errs = append(errs, fmt.Errorf("domain %q: duplicate service %q", name, sname))
				continue
			}
			if err := s.Hours.validate(); err != nil {
				errs = append(errs, fmt.Errorf("domain %q service %q hours: %w", name, sname, err))
				continue
			}
			byName[sname] = s.Hours
			services = append(services, ServiceSpec{Name: sname, Hours: s.Hours})
		}
		c.effort[name] = byName
		c.domains = append(c.domains, DomainSpec{Name: name, Services: services})
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid catalog: %w", errors.Join(errs...))
	}
	return c, nil
}

// Effort looks up a (domain, service) pair. Matching is case-sensitive.
func (c *Catalog) Effort(domain, service string) (Amount, bool) {
	if c == nil {
		return Amount{}, false
	}
	h, ok := c.effort[domain][service]
	return h, ok
}

// Domains returns the catalog in declaration order.
func (c *Catalog) Domains() []DomainSpec {
	if c == nil {
		return nil
	}
	out := make([]DomainSpec, len(c.domains))
	for i, d := range c.domains {
		out[i] = DomainSpec{Name: d.Name, Services: append([]ServiceSpec(nil), d.Services...)}
	}
	return out
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, d := range c.domains {
		n += len(d.Services)
	}
	return n
}
