package shacl

import "github.com/geoknoesis/semlift-go/rdf"

var (
	shNodeShape     = rdf.IRI{Value: rdf.SHNS + "NodeShape"}
	shPropertyShape = rdf.IRI{Value: rdf.SHNS + "PropertyShape"}
	shProperty      = rdf.IRI{Value: rdf.SHNS + "property"}
	shPath          = rdf.IRI{Value: rdf.SHNS + "path"}
	shMinCount      = rdf.IRI{Value: rdf.SHNS + "minCount"}
	shMaxCount      = rdf.IRI{Value: rdf.SHNS + "maxCount"}
	shDatatype      = rdf.IRI{Value: rdf.SHNS + "datatype"}
	shIn            = rdf.IRI{Value: rdf.SHNS + "in"}
	shPattern       = rdf.IRI{Value: rdf.SHNS + "pattern"}
	shMinLength     = rdf.IRI{Value: rdf.SHNS + "minLength"}
	shMaxLength     = rdf.IRI{Value: rdf.SHNS + "maxLength"}
	shMinInclusive  = rdf.IRI{Value: rdf.SHNS + "minInclusive"}
	shMaxInclusive  = rdf.IRI{Value: rdf.SHNS + "maxInclusive"}
	shMinExclusive  = rdf.IRI{Value: rdf.SHNS + "minExclusive"}
	shMaxExclusive  = rdf.IRI{Value: rdf.SHNS + "maxExclusive"}
	shNode          = rdf.IRI{Value: rdf.SHNS + "node"}
	shTargetClass   = rdf.IRI{Value: rdf.SHNS + "targetClass"}

	rdfFirst  = rdf.IRI{Value: rdf.RDFFirst}
	rdfRest   = rdf.IRI{Value: rdf.RDFRest}
	rdfNil    = rdf.IRI{Value: rdf.RDFNil}
	rdfsLabel = rdf.IRI{Value: rdf.RDFSLabel}
)

// scalarDatatypes maps JSON Schema scalar types to XSD datatypes.
var scalarDatatypes = map[string]string{
	"string":  rdf.XSDString,
	"integer": rdf.XSDInteger,
	"number":  rdf.XSDDecimal,
	"boolean": rdf.XSDBoolean,
}
