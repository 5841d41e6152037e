// Package e2e runs ingestion and search end to end over a corpus of career documents.
package e2e

import (
	"fmt"
	"strings"
)

// CareerEntry is one document in the corpus: a resume section, project write-up or course record.
type CareerEntry struct {
	Name    string
	Title   string
	Content string
}

// QueryTestCase defines a query and the file(s) of which at least one must appear in the results.
type QueryTestCase struct {
	Query         string
	ExpectedNames []string
	Description   string
}

// Corpus holds entries and query test cases for E2E tests.
type Corpus struct {
	Entries      []CareerEntry
	TestCases    []QueryTestCase
	TotalDocs    int
	TotalQueries int
}

var topics = []struct {
	title   string
	phrase  string
	content string
}{
	{"Payments Platform", "payment ledger reconciliation", "Built a double-entry payment ledger in Go. Payment ledger reconciliation ran nightly against bank statements."},
	{"Fraud Detection", "gradient boosted fraud scoring", "Trained gradient boosted models for card fraud. Gradient boosted fraud scoring cut chargebacks by a third."},
	{"Kubernetes Operator", "Kubernetes operator reconciler", "Wrote a Kubernetes operator for database failover. The Kubernetes operator reconciler handled leader election."},
	{"Recommendation Engine", "collaborative filtering recommendations", "Designed collaborative filtering for a bookstore. Collaborative filtering recommendations lifted basket size."},
	{"Search Relevance", "BM25 relevance tuning", "Owned search quality for an online marketplace. BM25 relevance tuning used click logs as judgments."},
	{"Mobile Banking App", "Swift iOS banking", "Shipped a Swift iOS banking app to two million users. Swift iOS banking features included biometric login."},
	{"Data Warehouse", "Snowflake dbt warehouse", "Migrated reporting to Snowflake with dbt models. The Snowflake dbt warehouse replaced hand-written SQL jobs."},
	{"Streaming Pipeline", "Flink streaming aggregation", "Ran Flink jobs over clickstream topics. Flink streaming aggregation produced minute-level dashboards."},
	{"Robotics Capstone", "ROS robot arm", "Capstone project controlling a six axis robot arm. ROS robot arm planning used inverse kinematics."},
	{"Compiler Course", "LLVM compiler backend", "Graduate course on compilers. Wrote an LLVM compiler backend for a toy stack machine."},
	{"Operating Systems Course", "xv6 kernel scheduler", "Coursework on operating systems. Replaced the xv6 kernel scheduler with a lottery scheduler."},
	{"Statistics Minor", "Bayesian hierarchical modeling", "Minor in statistics. Bayesian hierarchical modeling of sports outcomes for the thesis."},
	{"Teaching Assistant", "teaching assistant algorithms", "Teaching assistant for undergraduate courses. Teaching assistant algorithms sections covered dynamic programming."},
	{"Hackathon Win", "hackathon accessibility prototype", "Won a regional hackathon. The hackathon accessibility prototype read menus aloud for blind diners."},
	{"Open Source Maintainer", "maintainer Rust crate", "Maintainer of a popular parsing library. Maintainer Rust crate downloads passed a million."},
	{"Conference Talk", "conference talk covered observability", "Spoke at a developer conference. The conference talk covered observability for queue workers."},
	{"Team Leadership", "led platform team hiring", "Led the platform team of six engineers. Led platform team hiring and quarterly planning."},
	{"Mentorship", "mentored junior engineers", "Mentored junior engineers through weekly pairing. Mentored junior engineers on code review habits."},
	{"Incident Command", "incident commander", "Served as incident commander for a regional outage. As incident commander the outage postmortem drove failover drills."},
	{"Cost Reduction", "cloud spend reduction", "Drove cloud spend reduction across three accounts. Cloud spend reduction came from rightsizing and spot fleets."},
	{"Game Engine Hobby", "voxel game engine", "Hobby voxel game engine in C plus plus. The voxel game engine used greedy meshing."},
	{"Photography", "landscape photography exhibition", "Landscape photography exhibition at a local gallery. Landscape photography of alpine lakes sold out."},
	{"Volunteer Tutoring", "volunteer math tutoring", "Volunteer math tutoring at a community center. Volunteer math tutoring for high school students every Saturday."},
	{"Spanish Fluency", "fluent Spanish", "Fluent Spanish and conversational Portuguese. Fluent Spanish from two years living in Valencia."},
	{"AWS Certification", "AWS solutions architect certification", "Holds the AWS solutions architect certification. AWS solutions architect certification renewed in spring."},
	{"Embedded Firmware", "STM32 firmware bootloader", "Wrote STM32 firmware for a weather station. The STM32 firmware bootloader supported signed updates."},
	{"Bioinformatics Internship", "genome sequence alignment", "Internship at a genomics lab. Genome sequence alignment pipelines ran on a SLURM cluster."},
	{"Accessibility Audit", "WCAG accessibility audit", "Ran a WCAG accessibility audit for a government portal. The WCAG accessibility audit fixed contrast and focus order."},
	{"GraphQL Gateway", "GraphQL federation gateway", "Introduced a GraphQL federation gateway for twelve services. GraphQL federation gateway schemas were versioned."},
	{"Research Paper", "published paper", "First author on a workshop paper. The published paper on differential privacy studied census releases."},
}

// BuildCorpus returns one entry per topic and one query test case per entry.
// Each entry repeats a distinctive phrase so a query can assert which file comes back.
func BuildCorpus() *Corpus {
	entries := make([]CareerEntry, 0, len(topics))
	cases := make([]QueryTestCase, 0, len(topics))
	for i, t := range topics {
		name := fmt.Sprintf("entry-%03d", i+1)
		entries = append(entries, CareerEntry{Name: name, Title: t.title, Content: t.content})
		cases = append(cases, QueryTestCase{
			Query:         t.phrase,
			ExpectedNames: []string{name},
			Description:   fmt.Sprintf("query %q should return %s", t.phrase, name),
		})
	}
	return &Corpus{
		Entries:      entries,
		TestCases:    cases,
		TotalDocs:    len(entries),
		TotalQueries: len(cases),
	}
}

func containsPhrase(e CareerEntry, phrase string) bool {
	p := strings.ToLower(phrase)
	return strings.Contains(strings.ToLower(e.Title), p) || strings.Contains(strings.ToLower(e.Content), p)
}

// Text is the document body written to a file: the title, a blank line, then the content.
func (e CareerEntry) Text() string {
	return e.Title + "\n\n" + e.Content
}
