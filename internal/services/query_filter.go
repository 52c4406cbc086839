package services

import (
	"sort"
	"strings"

	types "github.com/openviz/widget-service/internal/domain"
)

// Query translation: raw, untyped REST query parameters become a typed store
// filter. Unknown keys are dropped silently; the exposed surface sits behind
// a federated gateway that forwards arbitrary caller params.

type AttrKind int

const (
	AttrString AttrKind = iota
	AttrArray
	AttrOther
)

// widgetAttrSchema is the known attribute schema. Kind drives operator
// choice: strings match case-insensitive substrings, arrays split into
// ALL-of (`@`-joined) or ANY-of (comma-joined), everything else is exact.
// Identifier references (dataset, layerId, userId) compare exactly; a
// substring match on an opaque id would cross record boundaries.
var widgetAttrSchema = map[string]AttrKind{
	"name":                  AttrString,
	"slug":                  AttrString,
	"description":           AttrString,
	"source":                AttrString,
	"sourceUrl":             AttrString,
	"authors":               AttrString,
	"queryUrl":              AttrString,
	"dataset":               AttrOther,
	"layerId":               AttrOther,
	"userId":                AttrOther,
	"application":           AttrArray,
	"verified":              AttrOther,
	"default":               AttrOther,
	"published":             AttrOther,
	"protected":             AttrOther,
	"freeze":                AttrOther,
	"template":              AttrOther,
	"defaultEditableWidget": AttrOther,
}

// controlParams never reach the filter; they steer pagination, sorting,
// includes, or are consumed upstream of translation.
var controlParams = map[string]struct{}{
	"sort":                {},
	"page[number]":        {},
	"page[size]":          {},
	"includes":            {},
	"filterIncludesByEnv": {},
	"loggedUser":          {},
	"usersRole":           {},
	"collection":          {},
	"favourite":           {},
	"ids":                 {},
	"env":                 {},
	"app":                 {},
}

// TranslateQuery is a pure transform from raw query params to a typed widget
// filter. roleUserIDs carries the pre-resolved usersRole→ids lookup (nil when
// the param was absent); allowIDs carries an id allow-list from explicit ids
// or a collection/favourite flag (nil when unrestricted).
func TranslateQuery(raw map[string]string, roleUserIDs []string, allowIDs []string) types.WidgetFilter {
	f := types.WidgetFilter{IDs: allowIDs}

	params := make(map[string]string, len(raw))
	for k, v := range raw {
		params[k] = v
	}

	// `app` aliases `application`, except in favourite listings where the
	// alias is dropped entirely.
	_, favourite := raw["favourite"]
	if app, ok := params["app"]; ok && !favourite {
		if _, explicit := params["application"]; !explicit {
			params["application"] = app
		}
	}

	// Environment: absent means production, "all" means unfiltered,
	// anything else is a comma-separated membership set.
	switch env := strings.TrimSpace(params["env"]); {
	case env == "":
		f = f.WithTerm("env", types.OpIn, types.DefaultEnv)
	case env == "all":
		// no environment restriction
	default:
		f = f.WithTerm("env", types.OpIn, splitTrim(env, ",")...)
	}

	// usersRole merges into userId membership: an explicit userId param
	// narrows the resolved role set rather than competing with it.
	if roleUserIDs != nil {
		ids := roleUserIDs
		if explicit, ok := params["userId"]; ok {
			ids = intersect([][]string{ids, splitTrim(explicit, ",")})
			delete(params, "userId")
		}
		f = f.WithTerm("userId", types.OpIn, ids...)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, control := controlParams[k]; control {
			continue
		}
		kind, known := widgetAttrSchema[k]
		if !known {
			continue
		}
		v := params[k]
		switch kind {
		case AttrString:
			f = f.WithTerm(k, types.OpStringMatch, v)
		case AttrArray:
			if strings.Contains(v, "@") {
				f = f.WithTerm(k, types.OpArrayAll, splitTrim(v, "@")...)
			} else {
				f = f.WithTerm(k, types.OpArrayAny, splitTrim(v, ",")...)
			}
		default:
			f = f.WithTerm(k, types.OpExact, strings.TrimSpace(v))
		}
	}
	return f
}

func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
