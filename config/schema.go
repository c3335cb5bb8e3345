package config

// rawFile is the on-disk shape of one configuration file, decodable from
// either JSON or YAML (gopkg.in/yaml.v3 decodes both: valid JSON is a subset
// of YAML).
type rawFile struct {
	Servers []rawServer `json:"servers" yaml:"servers"`
}

type rawServer struct {
	Host             string      `json:"host" yaml:"host"`
	Port             int         `json:"port" yaml:"port"`
	Alias            string      `json:"alias" yaml:"alias"`
	Username         string      `json:"username" yaml:"username"`
	Password         string      `json:"password" yaml:"password"`
	Local            bool        `json:"local" yaml:"local"`
	CronExpression   string      `json:"cronExpression" yaml:"cronExpression"`
	RunPeriodSeconds int         `json:"runPeriodSeconds" yaml:"runPeriodSeconds"`
	Queries          []rawQuery  `json:"queries" yaml:"queries"`
	Writers          []rawWriter `json:"writers" yaml:"writers"`
}

type rawQuery struct {
	Pattern    string            `json:"pattern" yaml:"pattern"`
	Attributes []string          `json:"attributes" yaml:"attributes"`
	Tags       map[string]string `json:"tags" yaml:"tags"`
	Writers    []rawWriter       `json:"writers" yaml:"writers"`
}

// rawWriter is a tagged-union writer spec: Type selects which OutputWriter
// implementation to build; the remaining fields are interpreted according to
// Type — one dispatch surface, many concrete variants.
type rawWriter struct {
	Type string `json:"type" yaml:"type"`

	// file
	FilePath    string `json:"filePath" yaml:"filePath"`
	MaxBytes    int64  `json:"maxBytes" yaml:"maxBytes"`
	MaxBackups  int    `json:"maxBackups" yaml:"maxBackups"`
	PrettyPrint bool   `json:"prettyPrint" yaml:"prettyPrint"`

	// prometheus
	Namespace string `json:"namespace" yaml:"namespace"`
}
