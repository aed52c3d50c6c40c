package githubscore

import (
	"sort"
	"strings"
)

// Domain buckets a technology contributes to.
const (
	DomainFullStack = "FULL STACK"
	DomainFrontend  = "FRONTEND"
	DomainBackend   = "BACKEND"
	DomainMobile    = "MOBILE DEVELOPMENT"
	DomainDevOps    = "DEVOPS"
	DomainData      = "DATA"
	DomainOthers    = "OTHERS"
)

type techCategory string

const (
	categoryLanguage  techCategory = "LANGUAGE"
	categoryFramework techCategory = "FRAMEWORK"
	categoryDatabase  techCategory = "DATABASE"
	categoryCloud     techCategory = "CLOUD"
	categoryTool      techCategory = "TOOL"
)

var technologyCategories = map[string]techCategory{
	"JAVASCRIPT": categoryLanguage,
	"TYPESCRIPT": categoryLanguage,
	"PYTHON":     categoryLanguage,
	"JAVA":       categoryLanguage,
	"C#":         categoryLanguage,
	"PHP":        categoryLanguage,
	"RUBY":       categoryLanguage,
	"GO":         categoryLanguage,
	"RUST":       categoryLanguage,
	"SWIFT":      categoryLanguage,
	"KOTLIN":     categoryLanguage,
	"DART":       categoryLanguage,
	"R":          categoryLanguage,

	"REACT":        categoryFramework,
	"ANGULAR":      categoryFramework,
	"VUE":          categoryFramework,
	"SVELTE":       categoryFramework,
	"NEXTJS":       categoryFramework,
	"NUXTJS":       categoryFramework,
	"NESTJS":       categoryFramework,
	"EXPRESS":      categoryFramework,
	"DJANGO":       categoryFramework,
	"FLASK":        categoryFramework,
	"SPRINGBOOT":   categoryFramework,
	"REACT-NATIVE": categoryFramework,
	"FLUTTER":      categoryFramework,

	"POSTGRESQL":    categoryDatabase,
	"MONGODB":       categoryDatabase,
	"MYSQL":         categoryDatabase,
	"REDIS":         categoryDatabase,
	"ELASTICSEARCH": categoryDatabase,
	"SNOWFLAKE":     categoryDatabase,

	"AWS":          categoryCloud,
	"AZURE":        categoryCloud,
	"GCP":          categoryCloud,
	"HEROKU":       categoryCloud,
	"DIGITALOCEAN": categoryCloud,

	"DOCKER":     categoryTool,
	"KUBERNETES": categoryTool,
	"JENKINS":    categoryTool,
	"TERRAFORM":  categoryTool,
	"ANSIBLE":    categoryTool,
	"GRAFANA":    categoryTool,
	"PROMETHEUS": categoryTool,
}

// languageDomainMapping is the primary technology to domain table.
// Ambiguous frameworks fall through to detectDomain.
var languageDomainMapping = map[string]string{
	"SPRINGBOOT": DomainFullStack,
	"FLASK":      DomainFullStack,
	"DJANGO":     DomainFullStack,
	"NESTJS":     DomainFullStack,
	"LARAVEL":    DomainFullStack,
	"RAILS":      DomainFullStack,

	"ANGULAR":    DomainFrontend,
	"REACT":      DomainFrontend,
	"VUE":        DomainFrontend,
	"SVELTE":     DomainFrontend,
	"NEXTJS":     DomainFrontend,
	"NUXTJS":     DomainFrontend,
	"HTML":       DomainFrontend,
	"CSS":        DomainFrontend,
	"SASS":       DomainFrontend,
	"LESS":       DomainFrontend,
	"TYPESCRIPT": DomainFrontend,
	"JAVASCRIPT": DomainFrontend,
	"WEBPACK":    DomainFrontend,
	"BABEL":      DomainFrontend,
	"JQUERY":     DomainFrontend,

	"JAVA":          DomainBackend,
	"PYTHON":        DomainBackend,
	"C#":            DomainBackend,
	"RUBY":          DomainBackend,
	"GO":            DomainBackend,
	"SCALA":         DomainBackend,
	"RUST":          DomainBackend,
	"PHP":           DomainBackend,
	"EXPRESS":       DomainBackend,
	"NODE":          DomainBackend,
	"FASTAPI":       DomainBackend,
	"GRAPHQL":       DomainBackend,
	"POSTGRESQL":    DomainBackend,
	"MONGODB":       DomainBackend,
	"MYSQL":         DomainBackend,
	"REDIS":         DomainBackend,
	"ELASTICSEARCH": DomainBackend,
	"RABBITMQ":      DomainBackend,
	"KAFKA":         DomainBackend,

	"REACT-NATIVE":  DomainMobile,
	"FLUTTER":       DomainMobile,
	"SWIFT":         DomainMobile,
	"DART":          DomainMobile,
	"KOTLIN":        DomainMobile,
	"XAMARIN":       DomainMobile,
	"IONIC":         DomainMobile,
	"ANDROIDSTUDIO": DomainMobile,
	"XCODE":         DomainMobile,

	"DOCKER":     DomainDevOps,
	"KUBERNETES": DomainDevOps,
	"JENKINS":    DomainDevOps,
	"TERRAFORM":  DomainDevOps,
	"ANSIBLE":    DomainDevOps,
	"AWS":        DomainDevOps,
	"AZURE":      DomainDevOps,
	"GCP":        DomainDevOps,
	"NGINX":      DomainDevOps,
	"YAML":       DomainDevOps,
	"SHELL":      DomainDevOps,
	"BASH":       DomainDevOps,
	"HCL":        DomainDevOps,
	"DOCKERFILE": DomainDevOps,
	"PROMETHEUS": DomainDevOps,
	"GRAFANA":    DomainDevOps,

	"JUPYTER NOTEBOOK": DomainData,
	"PANDAS":           DomainData,
	"NUMPY":            DomainData,
	"SCIPY":            DomainData,
	"SCIKIT":           DomainData,
	"TENSORFLOW":       DomainData,
	"PYTORCH":          DomainData,
	"R":                DomainData,
	"TABLEAU":          DomainData,
	"POWERBI":          DomainData,
	"HADOOP":           DomainData,
	"SPARK":            DomainData,
	"AIRFLOW":          DomainData,
	"SNOWFLAKE":        DomainData,
	"DATABRICKS":       DomainData,
}

var (
	jsFrameworks     = []string{"REACT", "ANGULAR", "VUE", "SVELTE", "NEXTJS", "NUXTJS", "NODE", "NESTJS", "EXPRESS"}
	pythonFrameworks = []string{"FLASK", "DJANGO", "FASTAPI", "PANDAS", "NUMPY", "SCIPY", "SCIKIT", "TENSORFLOW", "PYTORCH"}
	javaFrameworks   = []string{"SPRINGBOOT", "HIBERNATE", "JUNIT", "GRADLE", "MAVEN"}
	databaseTechs    = []string{"POSTGRESQL", "MONGODB", "MYSQL", "REDIS", "ELASTICSEARCH", "SNOWFLAKE"}
	cloudTechs       = []string{"AWS", "AZURE", "GCP", "HEROKU", "DIGITALOCEAN"}
	pythonDataTechs  = []string{"PANDAS", "NUMPY", "SCIPY", "SCIKIT", "TENSORFLOW", "PYTORCH"}
)

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// MapTechnologiesToDomains classifies a technology list into domain
// buckets. Each value is the comma-joined list of contributing
// technologies; a developer carrying both frontend and backend work
// alongside a framework or database also earns a derived FULL STACK
// entry combining the two.
func MapTechnologiesToDomains(technologies []string) map[string]string {
	domains := map[string]string{}
	if len(technologies) == 0 {
		return domains
	}

	categories := map[techCategory][]string{}
	for _, tech := range technologies {
		upper := strings.ToUpper(tech)
		if cat, ok := technologyCategories[upper]; ok {
			categories[cat] = append(categories[cat], upper)
		}
	}

	for _, tech := range technologies {
		upper := strings.ToUpper(tech)
		dom, ok := languageDomainMapping[upper]
		if !ok {
			dom = detectDomain(upper)
		}
		if dom == "" {
			dom = DomainOthers
		}
		if existing, ok := domains[dom]; ok {
			domains[dom] = existing + "," + tech
		} else {
			domains[dom] = tech
		}
	}

	_, hasFramework := categories[categoryFramework]
	_, hasDatabase := categories[categoryDatabase]
	fe, hasFrontend := domains[DomainFrontend]
	be, hasBackend := domains[DomainBackend]
	if hasFrontend && hasBackend && (hasFramework || hasDatabase) {
		domains[DomainFullStack] = fe + "," + be
	}

	return domains
}

// detectDomain resolves technologies absent from the primary table via
// the framework, database and cloud heuristics.
func detectDomain(tech string) string {
	if contains(jsFrameworks, tech) {
		if tech == "NODE" || tech == "EXPRESS" {
			return DomainBackend
		}
		return DomainFrontend
	}
	if contains(pythonFrameworks, tech) {
		if contains(pythonDataTechs, tech) {
			return DomainData
		}
		return DomainBackend
	}
	if contains(javaFrameworks, tech) {
		return DomainBackend
	}
	if contains(databaseTechs, tech) {
		return DomainBackend
	}
	if contains(cloudTechs, tech) {
		return DomainDevOps
	}
	return ""
}

// RankDomains orders domain keys by descending technology count with
// OTHERS always last.
func RankDomains(domains map[string]string) []string {
	keys := make([]string, 0, len(domains))
	for k := range domains {
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i] == DomainOthers {
			return false
		}
		if keys[j] == DomainOthers {
			return true
		}
		ci := len(strings.Split(domains[keys[i]], ","))
		cj := len(strings.Split(domains[keys[j]], ","))
		if ci != cj {
			return ci > cj
		}
		return keys[i] < keys[j]
	})
	return keys
}
