package rdf

// Namespaces used by the lifting pipeline and the shape compiler.
const (
	RDFNS  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFSNS = "http://www.w3.org/2000/01/rdf-schema#"
	XSDNS  = "http://www.w3.org/2001/XMLSchema#"
	SHNS   = "http://www.w3.org/ns/shacl#"
)

// Frequently used IRIs.
const (
	RDFType  = RDFNS + "type"
	RDFFirst = RDFNS + "first"
	RDFRest  = RDFNS + "rest"
	RDFNil   = RDFNS + "nil"

	RDFSLabel = RDFSNS + "label"

	XSDString  = XSDNS + "string"
	XSDInteger = XSDNS + "integer"
	XSDDecimal = XSDNS + "decimal"
	XSDBoolean = XSDNS + "boolean"
)
