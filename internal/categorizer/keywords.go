package categorizer

import "github.com/rezonia/cufe-expenses/internal/model"

type keywordGroup struct {
	category model.ExpenseCategory
	keywords []string
}

// Item description keywords, checked in order. Keywords are stored folded
// (lower case, no accents) and matched as substrings of the folded description.
var keywordTable = []keywordGroup{
	{model.CategoryFood, []string{
		"restaurante", "almuerzo", "desayuno", "comida rapida", "hamburguesa",
		"pizza", "empanada", "arepa", "sandwich", "perro caliente", "helado",
		"menu del dia", "bandeja paisa", "tinto", "capuchino", "gaseosa",
	}},
	{model.CategoryGroceries, []string{
		"leche", "pan tajado", "arroz", "huevo", "azucar", "aceite", "harina",
		"frutas", "verduras", "carne", "pollo", "queso", "mantequilla", "cafe molido",
		"atun", "lentejas", "frijol", "panela", "cebolla", "tomate", "mercado",
		"detergente", "jabon", "papel higienico",
	}},
	{model.CategoryTransport, []string{
		"gasolina", "acpm", "diesel", "combustible", "peaje", "parqueadero",
		"taxi", "pasaje", "tiquete aereo", "lavado de carro", "soat",
	}},
	{model.CategoryHealth, []string{
		"medicamento", "acetaminofen", "ibuprofeno", "dolex", "antibiotico",
		"vitamina", "consulta medica", "examen de laboratorio", "odontolog",
		"optometria", "tapabocas",
	}},
	{model.CategoryEntertainment, []string{
		"cine", "boleta", "concierto", "netflix", "spotify", "videojuego",
		"entrada al parque", "crispetas",
	}},
	{model.CategoryClothing, []string{
		"camisa", "camiseta", "pantalon", "jean", "zapato", "calzado", "vestido",
		"chaqueta", "ropa", "medias", "tenis deportivos",
	}},
	{model.CategoryHome, []string{
		"tornillo", "martillo", "pintura", "bombillo", "mueble", "colchon",
		"cortina", "sabana", "olla", "vajilla", "herramienta",
	}},
	{model.CategoryUtilities, []string{
		"energia", "acueducto", "alcantarillado", "gas natural", "internet",
		"telefonia", "plan de datos", "recarga", "television por cable",
	}},
	{model.CategoryEducation, []string{
		"matricula", "pension escolar", "curso", "libro", "cuaderno",
		"universidad", "colegio", "diplomado", "utiles escolares",
	}},
	{model.CategoryTechnology, []string{
		"computador", "portatil", "celular", "tablet", "audifonos", "cargador",
		"software", "impresora", "teclado", "mouse", "memoria usb", "licencia",
	}},
	{model.CategoryServices, []string{
		"servicio tecnico", "mantenimiento", "reparacion", "asesoria",
		"honorarios", "lavanderia", "corte de cabello", "instalacion",
		"domicilio", "suscripcion",
	}},
}
