// Package mxgraph turns MaterialX node-definition libraries into a catalog
// of node types that a host node editor can instantiate, and imports
// MaterialX graph documents into node trees built from that catalog.
//
// # Core Concepts
//
//   - Schema libraries: .mtlx files whose <nodedef> elements describe node
//     categories, their inputs, outputs and parameters.
//   - Node types: the synthesized form of a definition, with a stable
//     identifier (namespace + node string), sockets and typed property
//     descriptors whose defaults and bounds are already coerced.
//   - Catalog: the immutable, menu-ordered set of node types. A rebuild
//     produces a new catalog and swaps it in; readers are never blocked.
//   - Trees: node instances and links created from the active catalog,
//     either by the host or by importing a graph document.
//
// # Getting Started
//
//	lib, err := mxgraph.New(mxgraph.WithConfigFile("mxgraph.yaml"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer lib.Close()
//
//	report, err := lib.Load(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, diag := range report.Diagnostics {
//		log.Println(diag)
//	}
//
//	tree, result, err := lib.ImportFile(ctx, "wood.mtlx")
//
// Schema problems never abort a load or an import. Bad records are skipped
// and reported as diagnostics; see package mxerr for their codes.
//
// # Package Organization
//
//   - mtlx: MaterialX XML reading (schema libraries and graph documents)
//   - value: type-tag driven value coercion
//   - property: parameter descriptor building
//   - nodetype: node type synthesis
//   - catalog: the registry, menu filtering and serialised records
//   - graph: trees, instances and document import
//   - publish: catalog distribution over Redis and etcd
//   - serve: gRPC catalog query service
//   - config, health, mxerr: configuration, health checks and diagnostics
package mxgraph
