// Package language normalizes the narration language of a job.
//
// Submissions may name a language by BCP 47 tag ("en", "pt-BR"), ISO 639-2
// code ("fre", "deu") or English word ("Spanish"). Normalize reduces all of
// them to the base ISO 639-1 code stored on the job.
package language
