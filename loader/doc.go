// Package loader reads source documents for ingestion.
//
// A Loader matches a glob pattern against a directory using doublestar and
// turns every matching file into a core.RawDocument. Plain text goes through
// the langchaingo text loader, PDFs through ledongthuc/pdf and office or markup
// formats through docconv. Files whose content is not valid UTF-8 are logged
// and skipped; every other failure ends the load.
//
// Each document carries source, file_name and extension metadata. Documents
// are produced in lexicographic order of their path relative to the directory.
package loader
