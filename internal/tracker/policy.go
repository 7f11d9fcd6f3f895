package tracker

import (
	"fmt"
	"net/netip"
	"regexp"
	"sort"
	"strings"
)

// DefaultGuestRole is the role of anonymous requesters. Guests are always
// counted.
const DefaultGuestRole = "guest"

// ExclusionPolicy holds the rules that suppress recording. It is read-only
// while a view is evaluated.
type ExclusionPolicy struct {
	ExcludeCrawlers bool
	Crawlers        *CrawlerMatcher

	// GuestRole defaults to DefaultGuestRole when empty.
	GuestRole    string
	CountedRoles RoleSet

	ExcludedIPs      *IPSet
	ExcludedSubjects IDSet
	// ExcludedBranches excludes a root and all of its descendants.
	ExcludedBranches IDSet
	// CountableCategories is only enforced with auto counting on. Empty
	// means every category counts.
	CountableCategories IDSet
}

// Guest returns the guest role, DefaultGuestRole when unset. It always counts.
func (p ExclusionPolicy) Guest() string {
	if p.GuestRole == "" {
		return DefaultGuestRole
	}
	return p.GuestRole
}

// IDSet is a set of subject or category ids.
type IDSet map[int64]struct{}

// NewIDSet builds an IDSet from ids.
func NewIDSet(ids ...int64) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in ascending order.
func (s IDSet) Sorted() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RoleSet is a set of role names.
type RoleSet map[string]struct{}

// NewRoleSet builds a RoleSet from role names.
func NewRoleSet(roles ...string) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		if r = strings.TrimSpace(r); r != "" {
			s[r] = struct{}{}
		}
	}
	return s
}

// Has reports whether role is in the set.
func (s RoleSet) Has(role string) bool {
	_, ok := s[role]
	return ok
}

// Intersects reports whether the two sets share at least one role.
func (s RoleSet) Intersects(other RoleSet) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for r := range small {
		if large.Has(r) {
			return true
		}
	}
	return false
}

// Sorted returns the role names in ascending order.
func (s RoleSet) Sorted() []string {
	roles := make([]string, 0, len(s))
	for r := range s {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}

// IPSet matches requester addresses against single addresses and CIDR
// prefixes. Entries that parse as neither are compared as plain strings.
type IPSet struct {
	addrs    map[netip.Addr]struct{}
	prefixes []netip.Prefix
	raw      map[string]struct{}
	entries  []string
}

// NewIPSet builds an IPSet from configured entries.
func NewIPSet(entries ...string) *IPSet {
	s := &IPSet{
		addrs: make(map[netip.Addr]struct{}),
		raw:   make(map[string]struct{}),
	}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		s.entries = append(s.entries, e)
		if strings.Contains(e, "/") {
			if p, err := netip.ParsePrefix(e); err == nil {
				s.prefixes = append(s.prefixes, p.Masked())
				continue
			}
		}
		if a, err := netip.ParseAddr(e); err == nil {
			s.addrs[a.Unmap()] = struct{}{}
			continue
		}
		s.raw[e] = struct{}{}
	}
	return s
}

// Contains reports whether ip is excluded. An empty ip never matches.
func (s *IPSet) Contains(ip string) bool {
	if s == nil {
		return false
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return false
	}
	if _, ok := s.raw[ip]; ok {
		return true
	}
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	a = a.Unmap()
	if _, ok := s.addrs[a]; ok {
		return true
	}
	for _, p := range s.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// Entries returns the configured entries in their original form.
func (s *IPSet) Entries() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.entries...)
}

// CrawlerMatcher recognises crawler user agents by case-insensitive substring
// signatures and optional regular expressions.
type CrawlerMatcher struct {
	signatures []string
	patterns   []*regexp.Regexp
}

// NewCrawlerMatcher compiles a matcher. Patterns are compiled
// case-insensitively.
func NewCrawlerMatcher(signatures, patterns []string) (*CrawlerMatcher, error) {
	m := &CrawlerMatcher{}
	for _, s := range signatures {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			m.signatures = append(m.signatures, s)
		}
	}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compile crawler pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, re)
	}
	return m, nil
}

// Match reports whether userAgent looks like a crawler.
func (m *CrawlerMatcher) Match(userAgent string) bool {
	if m == nil || userAgent == "" {
		return false
	}
	ua := strings.ToLower(userAgent)
	for _, s := range m.signatures {
		if strings.Contains(ua, s) {
			return true
		}
	}
	for _, re := range m.patterns {
		if re.MatchString(userAgent) {
			return true
		}
	}
	return false
}

// Signatures returns the lower-cased substring signatures.
func (m *CrawlerMatcher) Signatures() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.signatures...)
}
