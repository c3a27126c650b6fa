// Package crawler implements the hierarchical listing crawl: the orchestrator that
// walks regions and sub-regions sequentially, the sub-region crawler that estimates
// pagination and fans out over index pages, the page crawler that fans out over
// listing links, and the listing extractor that turns a detail page into a Record.
//
// Every layer below the orchestrator contains its own failures: a broken listing,
// page or sub-region is logged and contributes nothing, while its siblings carry on.
package crawler
