// Package router maps request paths to backend services.
//
// The table is an ordered list of prefix entries fixed at construction.
// Resolution is a linear scan and the first entry whose prefix starts the
// path wins, so declaration order decides overlaps.
//
//	table := router.New([]router.Entry{
//	    {Prefix: "/api/users", Service: "user"},
//	    {Prefix: "/api/loans", Service: "loan"},
//	})
//	service, err := table.Resolve("/api/loans/42")
package router
