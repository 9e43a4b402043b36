package publication

import (
	"encoding/xml"
	"fmt"

	"git.home.luguber.info/inful/shipwright/internal/config"
)

type pomProject struct {
	XMLName        xml.Name       `xml:"project"`
	Xmlns          string         `xml:"xmlns,attr"`
	XmlnsXsi       string         `xml:"xmlns:xsi,attr"`
	SchemaLocation string         `xml:"xsi:schemaLocation,attr"`
	ModelVersion   string         `xml:"modelVersion"`
	GroupID        string         `xml:"groupId"`
	ArtifactID     string         `xml:"artifactId"`
	Version        string         `xml:"version"`
	Packaging      string         `xml:"packaging,omitempty"`
	Name           string         `xml:"name,omitempty"`
	Description    string         `xml:"description,omitempty"`
	URL            string         `xml:"url,omitempty"`
	Licenses       *pomLicenses   `xml:"licenses,omitempty"`
	Developers     *pomDevelopers `xml:"developers,omitempty"`
	SCM            *pomSCM        `xml:"scm,omitempty"`
}

type pomLicenses struct {
	License []pomLicense `xml:"license"`
}

type pomDevelopers struct {
	Developer []pomDeveloper `xml:"developer"`
}

type pomLicense struct {
	Name         string `xml:"name"`
	URL          string `xml:"url,omitempty"`
	Distribution string `xml:"distribution,omitempty"`
}

type pomDeveloper struct {
	ID   string `xml:"id"`
	Name string `xml:"name,omitempty"`
}

type pomSCM struct {
	Connection          string `xml:"connection,omitempty"`
	DeveloperConnection string `xml:"developerConnection,omitempty"`
	URL                 string `xml:"url,omitempty"`
}

// POMFileName is <artifact>-<version>.pom.
func (p *Publication) POMFileName() string {
	return p.Coordinates.Artifact + "-" + p.Coordinates.Version + ".pom"
}

// POM renders the Maven project descriptor of p.
func (p *Publication) POM() ([]byte, error) {
	meta := p.Metadata
	doc := pomProject{
		Xmlns:          "http://maven.apache.org/POM/4.0.0",
		XmlnsXsi:       "http://www.w3.org/2001/XMLSchema-instance",
		SchemaLocation: "http://maven.apache.org/POM/4.0.0 https://maven.apache.org/xsd/maven-4.0.0.xsd",
		ModelVersion:   "4.0.0",
		GroupID:        p.Coordinates.Group,
		ArtifactID:     p.Coordinates.Artifact,
		Version:        p.Coordinates.Version,
		Packaging:      p.Packaging,
		Name:           meta.Name,
		Description:    p.Description,
		URL:            meta.URL,
	}
	if meta.License.Name != "" {
		doc.Licenses = &pomLicenses{License: []pomLicense{{Name: meta.License.Name, URL: meta.License.URL, Distribution: meta.License.Distribution}}}
	}
	if len(meta.Developers) > 0 {
		doc.Developers = &pomDevelopers{}
		for _, d := range meta.Developers {
			doc.Developers.Developer = append(doc.Developers.Developer, pomDeveloper{ID: d.ID, Name: d.Name})
		}
	}
	if meta.SCM != (config.SCM{}) {
		doc.SCM = &pomSCM{Connection: meta.SCM.Connection, DeveloperConnection: meta.SCM.DeveloperConnection, URL: meta.SCM.URL}
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render pom for %s: %w", p.Coordinates, err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}
