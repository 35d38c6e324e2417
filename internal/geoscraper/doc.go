// Package geoscraper drives a crawl of one site: it discovers locality
// pages, extracts them on a bounded worker pool, and writes the resulting
// record set. An interrupted run still writes what it has to a partial file
// and flushes the geocode cache.
package geoscraper
